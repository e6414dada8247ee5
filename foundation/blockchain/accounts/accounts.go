// Package accounts maintains account balances and other account information
// as the global state of the reference chain.
package accounts

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"sync"

	"github.com/ardanlabs/chaintraits/foundation/blockchain/chain"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/database"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/genesis"
)

// Set of errors returned when enacting blocks.
var (
	ErrNotNextBlock       = errors.New("block is not the child of the latest block")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInsufficientFunds  = errors.New("insufficient balance")
)

// Info represents information stored for an individual account.
type Info struct {
	Balance uint64 `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

// BlockWriter represents the behavior required to persist a block once its
// changes have been staged.
type BlockWriter interface {
	Write(block database.Block) error
}

// Config represents the configuration required to construct the accounts.
type Config struct {
	Genesis     genesis.Genesis
	BlockWriter BlockWriter
	EvHandler   chain.EventHandler
}

// Accounts manages data related to accounts who have transacted on
// the blockchain. It implements the chain State interface.
type Accounts struct {
	genesis   genesis.Genesis
	writer    BlockWriter
	evHandler chain.EventHandler

	mu     sync.RWMutex
	info   map[database.AccountID]Info
	latest *database.Block
}

// New constructs the accounts seeded with the genesis balances.
func New(cfg Config) *Accounts {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	act := Accounts{
		genesis:   cfg.Genesis,
		writer:    cfg.BlockWriter,
		evHandler: ev,
		info:      seed(cfg.Genesis),
	}

	return &act
}

// Reset re-initializes the accounts back to the genesis information.
func (act *Accounts) Reset() {
	act.mu.Lock()
	defer act.mu.Unlock()

	act.info = seed(act.genesis)
	act.latest = nil
}

// Enact applies the block to the accounts and persists it through the
// block writer. Nothing changes when an error is returned.
func (act *Accounts) Enact(block database.Block) error {
	return act.enact(block, true)
}

// Replay applies a block that is already persisted, such as when the
// accounts are rebuilt from storage on startup.
func (act *Accounts) Replay(block database.Block) error {
	return act.enact(block, false)
}

// Copy makes a copy of the current information for all accounts.
func (act *Accounts) Copy() map[database.AccountID]Info {
	act.mu.RLock()
	defer act.mu.RUnlock()

	return maps.Clone(act.info)
}

// Balance returns the information for the specified account.
func (act *Accounts) Balance(accountID database.AccountID) (Info, bool) {
	act.mu.RLock()
	defer act.mu.RUnlock()

	info, exists := act.info[accountID]
	return info, exists
}

// Latest returns the last block enacted.
func (act *Accounts) Latest() (database.Block, bool) {
	act.mu.RLock()
	defer act.mu.RUnlock()

	if act.latest == nil {
		return database.Block{}, false
	}

	return *act.latest, true
}

// =============================================================================

func (act *Accounts) enact(block database.Block, persist bool) error {
	act.mu.Lock()
	defer act.mu.Unlock()

	act.evHandler("accounts: enact: blk[%d]: check: block extends the latest block", block.Number())

	switch {
	case act.latest == nil && block.Number() != 0:
		return fmt.Errorf("%w: got number %d on an empty ledger", ErrNotNextBlock, block.Number())
	case act.latest != nil && (block.Parent() != act.latest.ID() || block.Number() != act.latest.Number()+1):
		return fmt.Errorf("%w: parent %s, latest %s", ErrNotNextBlock, block.Parent(), act.latest.ID())
	}

	staged := maps.Clone(act.info)
	beneficiary := block.Header.BeneficiaryID

	for i, tx := range block.Trans {
		act.evHandler("accounts: enact: blk[%d]: apply tx[%d]: %s", block.Number(), i, tx)

		if err := act.applyTransaction(staged, beneficiary, tx); err != nil {
			return fmt.Errorf("tx[%d] %s: %w", i, tx, err)
		}
	}

	if block.Number() > 0 && beneficiary != "" {
		act.evHandler("accounts: enact: blk[%d]: mining reward[%d] to %s", block.Number(), act.genesis.MiningReward, beneficiary)

		info := staged[beneficiary]
		if info.Balance > math.MaxUint64-act.genesis.MiningReward {
			return fmt.Errorf("%w: mining reward overflows %s balance", ErrInvalidTransaction, beneficiary)
		}
		info.Balance += act.genesis.MiningReward
		staged[beneficiary] = info
	}

	if persist && act.writer != nil {
		if err := act.writer.Write(block); err != nil {
			return fmt.Errorf("persist block %d: %w", block.Number(), err)
		}
	}

	act.info = staged
	act.latest = &block

	act.evHandler("accounts: enact: blk[%d]: applied: %s", block.Number(), block.ID())

	return nil
}

// applyTransaction performs the business logic for applying a transaction
// to the staged accounts information.
func (act *Accounts) applyTransaction(staged map[database.AccountID]Info, beneficiary database.AccountID, tx database.BlockTx) error {
	if tx.ChainID != act.genesis.ChainID {
		return fmt.Errorf("%w: wrong chain id, got %d, exp %d", ErrInvalidTransaction, tx.ChainID, act.genesis.ChainID)
	}

	if tx.FromID == tx.ToID {
		return fmt.Errorf("%w: sending money to yourself, from %s, to %s", ErrInvalidTransaction, tx.FromID, tx.ToID)
	}

	fromInfo := staged[tx.FromID]
	if tx.Nonce <= fromInfo.Nonce {
		return fmt.Errorf("%w: nonce too small, last %d, tx %d", ErrInvalidTransaction, fromInfo.Nonce, tx.Nonce)
	}

	fee := tx.GasFee() + tx.Tip
	if tx.GasUnits != 0 && tx.GasFee()/tx.GasUnits != tx.GasPrice {
		return fmt.Errorf("%w: gas fee overflow", ErrInvalidTransaction)
	}

	cost := tx.Value + fee
	if cost < tx.Value || fee < tx.Tip {
		return fmt.Errorf("%w: cost overflow", ErrInvalidTransaction)
	}

	if cost > fromInfo.Balance {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, tx.FromID, fromInfo.Balance, cost)
	}

	fromInfo.Balance -= cost
	fromInfo.Nonce = tx.Nonce
	staged[tx.FromID] = fromInfo

	toInfo := staged[tx.ToID]
	if toInfo.Balance > math.MaxUint64-tx.Value {
		return fmt.Errorf("%w: balance overflow for %s", ErrInvalidTransaction, tx.ToID)
	}
	toInfo.Balance += tx.Value
	staged[tx.ToID] = toInfo

	if beneficiary != "" {
		benInfo := staged[beneficiary]
		if benInfo.Balance > math.MaxUint64-fee {
			return fmt.Errorf("%w: fee overflows %s balance", ErrInvalidTransaction, beneficiary)
		}
		benInfo.Balance += fee
		staged[beneficiary] = benInfo
	}

	return nil
}

// seed builds the accounts from the genesis balances.
func seed(genesis genesis.Genesis) map[database.AccountID]Info {
	info := make(map[database.AccountID]Info, len(genesis.Balances))
	for accountID, balance := range genesis.Balances {
		info[database.AccountID(accountID)] = Info{Balance: balance}
	}
	return info
}
