package state

import (
	"github.com/ardanlabs/chaintraits/foundation/blockchain/accounts"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/chain"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/database"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/genesis"
)

// QueryLatest represents to query the latest block in the chain.
const QueryLatest = ^uint64(0) >> 1

// =============================================================================

// RetrieveGenesis returns a copy of the genesis information.
func (s *State) RetrieveGenesis() genesis.Genesis {
	return s.genesis
}

// RetrieveLatestBlock returns a copy the current latest block.
func (s *State) RetrieveLatestBlock() (database.Block, bool) {
	return s.accounts.Latest()
}

// RetrieveAccounts returns a copy of every account.
func (s *State) RetrieveAccounts() map[database.AccountID]accounts.Info {
	return s.accounts.Copy()
}

// QueryAccount returns the information for the specified account.
func (s *State) QueryAccount(accountID database.AccountID) (accounts.Info, bool) {
	return s.accounts.Balance(accountID)
}

// QueryBlockByID returns the block with the specified id, canonical or not.
func (s *State) QueryBlockByID(id string) (database.Block, bool) {
	return s.storage.Block(id)
}

// QueryBlockByNumber returns the canonical block at the specified number.
func (s *State) QueryBlockByNumber(num uint64) (database.Block, bool) {
	if num == QueryLatest {
		return s.accounts.Latest()
	}

	id, exists := s.storage.BlockID(num)
	if !exists {
		return database.Block{}, false
	}

	return s.storage.Block(id)
}

// QueryTransactions returns the transactions of the specified block.
func (s *State) QueryTransactions(id string) ([]database.BlockTx, bool) {
	return chain.Transactions[string, database.BlockTx, database.Block](s.storage, id)
}

// QueryUncles returns the uncles declared by the specified block.
func (s *State) QueryUncles(id string) ([]string, bool) {
	return chain.Uncles[string, string, database.Block](s.storage, id)
}

// QueryBlocksByNumber reads the canonical blocks in the specified range back
// from storage. The range is clamped to the latest block.
func (s *State) QueryBlocksByNumber(from uint64, to uint64) []database.Block {
	height := s.storage.Height()
	if height == 0 {
		return nil
	}

	if from == QueryLatest {
		from = height - 1
	}
	if to == QueryLatest || to >= height {
		to = height - 1
	}

	var out []database.Block
	for num := from; num <= to; num++ {
		block, err := s.storage.ReadBlock(num)
		if err != nil {
			s.evHandler("state: QueryBlocksByNumber: blk[%d]: ERROR: %s", num, err)
			return out
		}
		out = append(out, block)
	}

	return out
}
