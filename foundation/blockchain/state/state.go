// Package state is the core API for the blockchain. It binds the reference
// chain's storage, accounts and verifier to the import pipeline.
package state

import (
	"context"
	"fmt"

	"github.com/ardanlabs/chaintraits/foundation/blockchain/accounts"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/chain"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/database"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/genesis"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/storage"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/verifier"
)

// Importer is the import pipeline for the reference chain.
type Importer = chain.Importer[string, database.BlockTx, database.Block]

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	Genesis    genesis.Genesis
	Serializer storage.Serializer
	Observer   chain.Observer
	EvHandler  chain.EventHandler
}

// State manages the blockchain database.
type State struct {
	genesis   genesis.Genesis
	evHandler chain.EventHandler

	storage  *storage.Store
	accounts *accounts.Accounts
	importer *Importer
}

// New constructs a new blockchain for data management. The stored chain is
// replayed onto the accounts and genesis is imported for an empty store.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	// Access the storage for the blockchain. Every stored block is loaded
	// into memory.
	strg, err := storage.New(cfg.Serializer, ev)
	if err != nil {
		return nil, err
	}

	// The accounts persist every enacted block through the storage.
	accts := accounts.New(accounts.Config{
		Genesis:     cfg.Genesis,
		BlockWriter: strg,
		EvHandler:   ev,
	})

	chn := chain.Chain[string, database.BlockTx, database.Block]{
		Decode:   database.Decode,
		Verifier: verifier.New(cfg.Genesis, ev),
	}

	importer, err := chain.NewImporter(chain.Config[string, database.BlockTx, database.Block]{
		Chain:     chn,
		Provider:  strg,
		State:     accts,
		Observer:  cfg.Observer,
		EvHandler: ev,
	})
	if err != nil {
		return nil, err
	}

	s := State{
		genesis:   cfg.Genesis,
		evHandler: ev,
		storage:   strg,
		accounts:  accts,
		importer:  importer,
	}

	if err := s.replay(); err != nil {
		strg.Close()
		return nil, err
	}

	return &s, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	return s.storage.Close()
}

// Truncate resets the chain both on disk and in memory back to genesis.
func (s *State) Truncate() error {
	s.evHandler("state: truncate: started")
	defer s.evHandler("state: truncate: completed")

	if err := s.storage.Reset(); err != nil {
		return err
	}
	s.accounts.Reset()

	return s.replay()
}

// =============================================================================

// replay applies the stored canonical blocks to the accounts. An empty store
// is started with the genesis block.
func (s *State) replay() error {
	height := s.storage.Height()

	if height == 0 {
		s.evHandler("state: replay: importing genesis")

		if err := s.importer.Process(context.Background(), database.GenesisBlock(s.genesis)); err != nil {
			return fmt.Errorf("import genesis: %w", err)
		}
		return nil
	}

	if id, _ := s.storage.BlockID(0); id != database.GenesisBlock(s.genesis).ID() {
		return fmt.Errorf("stored genesis %s does not match the genesis file", id)
	}

	for num := uint64(0); num < height; num++ {
		id, _ := s.storage.BlockID(num)
		block, _ := s.storage.Block(id)

		if err := s.accounts.Replay(block); err != nil {
			return fmt.Errorf("replay block %d: %w", num, err)
		}
	}

	s.evHandler("state: replay: blocks[%d]", height)

	return nil
}
