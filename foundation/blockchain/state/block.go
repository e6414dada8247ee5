package state

import (
	"context"
	"errors"

	"github.com/ardanlabs/chaintraits/foundation/blockchain/accounts"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/chain"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/database"
)

// ImportBlock decodes the raw bytes and runs the block through the import
// pipeline.
func (s *State) ImportBlock(ctx context.Context, data []byte) (database.Block, error) {
	block, err := s.importer.Import(ctx, data)
	if err != nil {
		s.keepSide(block, err)
		return database.Block{}, err
	}

	return block, nil
}

// ImportBlocks decodes a batch of raw blocks, verifies them concurrently and
// enacts them in the order given. The returned slice holds the outcome for
// the block at the same index.
func (s *State) ImportBlocks(ctx context.Context, data [][]byte) []error {
	errs := make([]error, len(data))

	var blocks []database.Block
	var index []int

	for i, d := range data {
		block, err := database.Decode(d)
		if err != nil {
			errs[i] = chain.NewPhaseError(chain.PhaseDecode, err)
			continue
		}

		blocks = append(blocks, block)
		index = append(index, i)
	}

	for j, err := range s.importer.ProcessBatch(ctx, blocks) {
		s.keepSide(blocks[j], err)
		errs[index[j]] = err
	}

	return errs
}

// keepSide records a fully verified block that lost to a sibling so later
// blocks can name it as an uncle.
func (s *State) keepSide(block database.Block, err error) {
	if chain.IsPhase(err, chain.PhaseEnact) && errors.Is(err, accounts.ErrNotNextBlock) {
		s.evHandler("state: keepSide: blk[%d]: %s", block.Number(), block.ID())
		s.storage.AddSide(block)
	}
}
