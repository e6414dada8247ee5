package chain

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Observer is notified about the outcome of every block the importer
// processes.
type Observer interface {
	Accepted(number uint64)
	Rejected(phase Phase, err error)
}

// Observers fans every outcome out to a set of observers.
type Observers []Observer

// Accepted implements the Observer interface.
func (obs Observers) Accepted(number uint64) {
	for _, o := range obs {
		o.Accepted(number)
	}
}

// Rejected implements the Observer interface.
func (obs Observers) Rejected(phase Phase, err error) {
	for _, o := range obs {
		o.Rejected(phase, err)
	}
}

// Config represents the systems an importer needs to drive the pipeline.
type Config[ID comparable, TX any, B Block[ID, TX]] struct {
	Chain     Chain[ID, TX, B]
	Provider  Provider[ID, B]
	State     State[B]
	Observer  Observer
	EvHandler EventHandler
}

// Importer drives candidate blocks through decode, the three verification
// phases and enactment, in that order, failing closed on the first error.
type Importer[ID comparable, TX any, B Block[ID, TX]] struct {
	chain     Chain[ID, TX, B]
	provider  Provider[ID, B]
	state     State[B]
	observer  Observer
	evHandler EventHandler
}

// NewImporter constructs an importer for the configured chain.
func NewImporter[ID comparable, TX any, B Block[ID, TX]](cfg Config[ID, TX, B]) (*Importer[ID, TX, B], error) {
	switch {
	case cfg.Chain.Decode == nil:
		return nil, errors.New("chain decoder is required")
	case cfg.Chain.Verifier == nil:
		return nil, errors.New("chain verifier is required")
	case cfg.Provider == nil:
		return nil, errors.New("provider is required")
	case cfg.State == nil:
		return nil, errors.New("state is required")
	}

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	imp := Importer[ID, TX, B]{
		chain:     cfg.Chain,
		provider:  cfg.Provider,
		state:     cfg.State,
		observer:  cfg.Observer,
		evHandler: ev,
	}

	return &imp, nil
}

// Import decodes the raw bytes into a block and processes it.
func (imp *Importer[ID, TX, B]) Import(ctx context.Context, data []byte) (B, error) {
	block, err := imp.chain.Decode(data)
	if err != nil {
		var zero B
		return zero, imp.reject(NewPhaseError(PhaseDecode, err))
	}

	if err := imp.Process(ctx, block); err != nil {
		return block, err
	}

	return block, nil
}

// Process verifies the block and, when every phase succeeds, enacts it on
// the state. A cancelled context before enactment means the block was not
// applied.
func (imp *Importer[ID, TX, B]) Process(ctx context.Context, block B) error {
	return imp.complete(ctx, NewVerification(imp.chain.Verifier, block), block)
}

// Prevalidate runs the basic and unordered phases for a batch of
// independent blocks concurrently. The returned slice holds the outcome for
// the block at the same index.
func (imp *Importer[ID, TX, B]) Prevalidate(ctx context.Context, blocks []B) []error {
	_, errs := imp.prevalidate(ctx, blocks)
	return errs
}

// ProcessBatch prevalidates the blocks concurrently and then runs the family
// phase and enactment for each block in the order given. The returned slice
// holds the outcome for the block at the same index.
func (imp *Importer[ID, TX, B]) ProcessBatch(ctx context.Context, blocks []B) []error {
	vs, errs := imp.prevalidate(ctx, blocks)

	for i, block := range blocks {
		if errs[i] != nil {

			// A cancelled batch was never judged, so only phase failures
			// are reported.
			if GetPhaseError(errs[i]) != nil {
				imp.reject(errs[i])
			}
			continue
		}

		errs[i] = imp.complete(ctx, vs[i], block)
	}

	return errs
}

// =============================================================================

// prevalidate runs the basic and unordered phases concurrently, keeping the
// verification of every block so the remaining phases can follow.
func (imp *Importer[ID, TX, B]) prevalidate(ctx context.Context, blocks []B) ([]*Verification[ID, B], []error) {
	vs := make([]*Verification[ID, B], len(blocks))
	errs := make([]error, len(blocks))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, block := range blocks {
		vs[i] = NewVerification(imp.chain.Verifier, block)

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}

			if err := vs[i].Basic(); err != nil {
				errs[i] = err
				return nil
			}

			errs[i] = vs[i].Unordered()
			return nil
		})
	}

	g.Wait()

	return vs, errs
}

// complete runs the phases the verification has not run yet and enacts the
// block when all of them succeed.
func (imp *Importer[ID, TX, B]) complete(ctx context.Context, v *Verification[ID, B], block B) error {
	imp.evHandler("chain: Process: started: blk[%d]: id[%v]: parent[%v]: numTrans[%d]", block.Number(), block.ID(), block.Parent(), len(block.Transactions()))
	defer imp.evHandler("chain: Process: completed: blk[%d]", block.Number())

	if err := v.Run(imp.provider); err != nil {
		return imp.reject(err)
	}

	if err := ctx.Err(); err != nil {
		imp.evHandler("chain: Process: blk[%d]: cancelled before enact: %s", block.Number(), err)
		return fmt.Errorf("block %d not applied: %w", block.Number(), err)
	}

	imp.evHandler("chain: Process: blk[%d]: enact", block.Number())

	if err := imp.state.Enact(block); err != nil {
		return imp.reject(NewPhaseError(PhaseEnact, err))
	}

	if imp.observer != nil {
		imp.observer.Accepted(block.Number())
	}

	return nil
}

// reject reports the error to the observer and hands it back.
func (imp *Importer[ID, TX, B]) reject(err error) error {
	phase := Phase(0)
	if pe := GetPhaseError(err); pe != nil {
		phase = pe.Phase
	}

	imp.evHandler("chain: Process: REJECTED: %s", err)

	if imp.observer != nil {
		imp.observer.Rejected(phase, err)
	}

	return err
}
