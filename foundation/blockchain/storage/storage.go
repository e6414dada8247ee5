// Package storage provides the block provider for the reference chain. Blocks
// are indexed in memory and persisted through a Serializer.
package storage

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/ardanlabs/chaintraits/foundation/blockchain/chain"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/database"
)

// Set of errors returned by the store.
var (
	ErrNotNext       = errors.New("block is not the next canonical block")
	ErrCorruptChain  = errors.New("stored chain is corrupt")
	ErrBlockNotFound = errors.New("block does not exist")
)

// Serializer interface represents the behavior required to be implemented by
// any package providing support for reading and writing the canonical
// blocks. Blocks are written in the encoded form produced by the block codec.
type Serializer interface {
	Write(num uint64, data []byte) error
	GetBlock(num uint64) ([]byte, error)
	ForEach() Iterator
	Close() error
	Reset() error
}

// Iterator interface represents the behavior required to be implemented by
// any package providing support to iterate over the blocks in number order.
type Iterator interface {
	Next() ([]byte, error)
	Done() bool
}

// =============================================================================

// Store implements the chain Provider for the reference chain. Canonical
// blocks are written through the serializer, side blocks are only indexed
// in memory so they can be referenced as uncles.
type Store struct {
	mu         sync.RWMutex
	serializer Serializer
	evHandler  chain.EventHandler
	blocks     map[string]database.Block
	canonical  []string
}

// New constructs a store and loads every block held by the serializer.
func New(serializer Serializer, evHandler chain.EventHandler) (*Store, error) {
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	s := Store{
		serializer: serializer,
		evHandler:  ev,
		blocks:     make(map[string]database.Block),
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	return &s, nil
}

// load walks the serializer and indexes every stored block. Each block is
// decoded with the block codec and must extend the previous one.
func (s *Store) load() error {
	iter := s.serializer.ForEach()
	for data, err := iter.Next(); !iter.Done(); data, err = iter.Next() {
		if err != nil {
			return err
		}

		block, err := database.Decode(data)
		if err != nil {
			return fmt.Errorf("%w: block %d: %w", ErrCorruptChain, len(s.canonical), err)
		}

		if err := s.extends(block); err != nil {
			return fmt.Errorf("%w: %w", ErrCorruptChain, err)
		}

		s.index(block)
	}

	s.evHandler("storage: load: blocks[%d]", len(s.canonical))

	return nil
}

// Close cleanly releases the serializer.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.serializer.Close()
}

// Reset clears the store and the serializer so the chain can start new.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.serializer.Reset(); err != nil {
		return err
	}

	s.blocks = make(map[string]database.Block)
	s.canonical = nil

	s.evHandler("storage: reset")

	return nil
}

// Write persists the block and makes it the latest canonical block. The
// block must be the child of the current latest block, or genesis for an
// empty store.
func (s *Store) Write(block database.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.extends(block); err != nil {
		return err
	}

	data, err := block.Encode()
	if err != nil {
		return fmt.Errorf("encode block %d: %w", block.Number(), err)
	}

	if err := s.serializer.Write(block.Number(), data); err != nil {
		return fmt.Errorf("write block %d: %w", block.Number(), err)
	}

	s.index(block)

	s.evHandler("storage: write: blk[%d]: %s", block.Number(), block.ID())

	return nil
}

// AddSide indexes a block that is not on the canonical chain so it can be
// found by id. A block already known is left alone.
func (s *Store) AddSide(block database.Block) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := block.ID()
	if _, exists := s.blocks[id]; exists {
		return
	}

	s.blocks[id] = copyBlock(block)

	s.evHandler("storage: add side: blk[%d]: %s", block.Number(), id)
}

// Block implements the chain Provider interface.
func (s *Store) Block(id string) (database.Block, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	block, exists := s.blocks[id]
	if !exists {
		return database.Block{}, false
	}

	return copyBlock(block), true
}

// BlockID implements the chain Provider interface.
func (s *Store) BlockID(num uint64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if num >= uint64(len(s.canonical)) {
		return "", false
	}

	return s.canonical[num], true
}

// Transactions implements the chain TransactionProvider interface.
func (s *Store) Transactions(id string) ([]database.BlockTx, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	block, exists := s.blocks[id]
	if !exists {
		return nil, false
	}

	return slices.Clone(block.Trans), true
}

// Uncles implements the chain UncleProvider interface.
func (s *Store) Uncles(id string) ([]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	block, exists := s.blocks[id]
	if !exists {
		return nil, false
	}

	return slices.Clone(block.Header.Uncles), true
}

// LatestBlock returns the last canonical block.
func (s *Store) LatestBlock() (database.Block, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.canonical) == 0 {
		return database.Block{}, false
	}

	return copyBlock(s.blocks[s.canonical[len(s.canonical)-1]]), true
}

// Height returns the number of canonical blocks.
func (s *Store) Height() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return uint64(len(s.canonical))
}

// ReadBlock returns the canonical block at the specified number as held by
// the serializer.
func (s *Store) ReadBlock(num uint64) (database.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if num >= uint64(len(s.canonical)) {
		return database.Block{}, ErrBlockNotFound
	}

	data, err := s.serializer.GetBlock(num)
	if err != nil {
		return database.Block{}, err
	}

	return database.Decode(data)
}

// =============================================================================

// extends checks the block is the next canonical block. The caller must
// hold the lock.
func (s *Store) extends(block database.Block) error {
	next := uint64(len(s.canonical))

	if block.Number() != next {
		return fmt.Errorf("%w: got number %d, exp %d", ErrNotNext, block.Number(), next)
	}

	if next > 0 {
		if latest := s.canonical[next-1]; block.Parent() != latest {
			return fmt.Errorf("%w: parent %s, latest %s", ErrNotNext, block.Parent(), latest)
		}
	}

	return nil
}

// index records the block as the latest canonical block. The caller must
// hold the lock.
func (s *Store) index(block database.Block) {
	id := block.ID()
	s.blocks[id] = copyBlock(block)
	s.canonical = append(s.canonical, id)
}

// copyBlock returns a block that shares no slices with the original.
func copyBlock(block database.Block) database.Block {
	block.Trans = slices.Clone(block.Trans)
	block.Header.Uncles = slices.Clone(block.Header.Uncles)
	return block
}
