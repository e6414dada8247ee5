// Package verifier implements the three phase verification rules of the
// reference chain.
package verifier

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/ardanlabs/chaintraits/foundation/blockchain/chain"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/database"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/genesis"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/signature"
	"github.com/ardanlabs/chaintraits/foundation/blockchain/validate"
	"golang.org/x/sync/errgroup"
)

// Set of errors for the basic phase.
var (
	ErrGenesisShape  = errors.New("invalid genesis block")
	ErrTooManyTrans  = errors.New("too many transactions")
	ErrTooManyUncles = errors.New("too many uncles")
	ErrDuplicateTx   = errors.New("duplicate transaction")
	ErrTransRoot     = errors.New("merkle root does not match transactions")
	ErrWrongChain    = errors.New("transaction for a different chain")
)

// Set of errors for the unordered phase.
var (
	ErrSignature = errors.New("invalid transaction signature")
)

// Set of errors for the family phase.
var (
	ErrGenesisMismatch     = errors.New("genesis block does not match the known genesis")
	ErrUnknownParent       = errors.New("parent block is unknown")
	ErrNumberDiscontinuity = errors.New("block is not the next number")
	ErrTimestamp           = errors.New("block timestamp is not after its parent")
	ErrUnknownUncle        = errors.New("uncle block is unknown")
	ErrDuplicateUncle      = errors.New("duplicate uncle")
	ErrUncleIsAncestor     = errors.New("uncle is an ancestor")
	ErrUncleDepth          = errors.New("uncle is not a sibling of a recent ancestor")
	ErrUncleIncluded       = errors.New("uncle already included by an ancestor")
)

// Provider is the block provider of the reference chain.
type Provider = chain.Provider[string, database.Block]

// =============================================================================

// Verifier checks blocks of the reference chain. Every method is safe for
// concurrent use.
type Verifier struct {
	genesis   genesis.Genesis
	evHandler chain.EventHandler
}

// New constructs a verifier for the chain described by the genesis.
func New(genesis genesis.Genesis, evHandler chain.EventHandler) *Verifier {
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	return &Verifier{
		genesis:   genesis,
		evHandler: ev,
	}
}

// VerifyBasic performs the structural checks that need nothing but the block.
func (v *Verifier) VerifyBasic(b database.Block) error {
	v.evHandler("verifier: VerifyBasic: blk[%d]: check: header fields", b.Header.Number)

	if err := validate.Check(b.Header); err != nil {
		return fmt.Errorf("header: %w", err)
	}

	v.evHandler("verifier: VerifyBasic: blk[%d]: check: genesis shape", b.Header.Number)

	isGenesis := b.Header.Number == 0
	switch {
	case isGenesis && b.Header.PrevBlockHash != signature.ZeroHash:
		return fmt.Errorf("%w: parent must be the zero hash", ErrGenesisShape)
	case isGenesis && (len(b.Trans) > 0 || len(b.Header.Uncles) > 0):
		return fmt.Errorf("%w: genesis carries no transactions or uncles", ErrGenesisShape)
	case !isGenesis && b.Header.PrevBlockHash == signature.ZeroHash:
		return fmt.Errorf("%w: only block 0 can have the zero hash parent", ErrGenesisShape)
	}

	v.evHandler("verifier: VerifyBasic: blk[%d]: check: transaction and uncle limits", b.Header.Number)

	if max := int(v.genesis.TransPerBlock); max > 0 && len(b.Trans) > max {
		return fmt.Errorf("%w: got %d, max %d", ErrTooManyTrans, len(b.Trans), max)
	}

	if max := int(v.genesis.MaxUncles); len(b.Header.Uncles) > max {
		return fmt.Errorf("%w: got %d, max %d", ErrTooManyUncles, len(b.Header.Uncles), max)
	}

	uncles := make(map[string]struct{}, len(b.Header.Uncles))
	for _, uncle := range b.Header.Uncles {
		if _, exists := uncles[uncle]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateUncle, uncle)
		}
		if uncle == b.Header.PrevBlockHash {
			return fmt.Errorf("%w: parent %s listed as uncle", ErrUncleIsAncestor, uncle)
		}
		uncles[uncle] = struct{}{}
	}

	v.evHandler("verifier: VerifyBasic: blk[%d]: check: transaction fields", b.Header.Number)

	type key struct {
		from  database.AccountID
		nonce uint64
	}
	seen := make(map[key]struct{}, len(b.Trans))

	for i, tx := range b.Trans {
		if err := validate.Check(tx); err != nil {
			return fmt.Errorf("tx[%d]: %w", i, err)
		}

		if tx.ChainID != v.genesis.ChainID {
			return fmt.Errorf("tx[%d]: %w: got %d, exp %d", i, ErrWrongChain, tx.ChainID, v.genesis.ChainID)
		}

		k := key{from: tx.FromID, nonce: tx.Nonce}
		if _, exists := seen[k]; exists {
			return fmt.Errorf("tx[%d]: %w: %s", i, ErrDuplicateTx, tx)
		}
		seen[k] = struct{}{}
	}

	v.evHandler("verifier: VerifyBasic: blk[%d]: check: merkle root does match transactions", b.Header.Number)

	root, err := database.TransRoot(b.Trans)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrTransRoot, err)
	}

	if root != b.Header.TransRoot {
		return fmt.Errorf("%w: got %s, exp %s", ErrTransRoot, b.Header.TransRoot, root)
	}

	return nil
}

// VerifyUnordered checks every transaction signature. The signatures are
// checked concurrently since they are independent of each other.
func (v *Verifier) VerifyUnordered(b database.Block) error {
	v.evHandler("verifier: VerifyUnordered: blk[%d]: check: %d transaction signatures", b.Header.Number, len(b.Trans))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, tx := range b.Trans {
		g.Go(func() error {
			if err := tx.Validate(v.genesis.ChainID); err != nil {
				return fmt.Errorf("tx[%d] %s: %w: %s", i, tx, ErrSignature, err)
			}
			return nil
		})
	}

	return g.Wait()
}

// VerifyFamily checks the block against its parent, ancestors and uncles as
// known by the provider.
func (v *Verifier) VerifyFamily(b database.Block, p Provider) error {
	if b.Header.Number == 0 {
		v.evHandler("verifier: VerifyFamily: blk[0]: check: genesis matches known genesis")

		if id, exists := p.BlockID(0); exists && id != b.Hash() {
			return fmt.Errorf("%w: got %s, exp %s", ErrGenesisMismatch, b.Hash(), id)
		}
		return nil
	}

	v.evHandler("verifier: VerifyFamily: blk[%d]: check: parent block is known", b.Header.Number)

	parent, exists := p.Block(b.Header.PrevBlockHash)
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownParent, b.Header.PrevBlockHash)
	}

	v.evHandler("verifier: VerifyFamily: blk[%d]: check: block number is the next number", b.Header.Number)

	if nextNumber := parent.Header.Number + 1; b.Header.Number != nextNumber {
		return fmt.Errorf("%w: got %d, exp %d", ErrNumberDiscontinuity, b.Header.Number, nextNumber)
	}

	v.evHandler("verifier: VerifyFamily: blk[%d]: check: block's timestamp is greater than parent block's timestamp", b.Header.Number)

	if b.Header.TimeStamp <= parent.Header.TimeStamp {
		return fmt.Errorf("%w: parent %d, block %d", ErrTimestamp, parent.Header.TimeStamp, b.Header.TimeStamp)
	}

	if len(b.Header.Uncles) == 0 {
		return nil
	}

	v.evHandler("verifier: VerifyFamily: blk[%d]: check: %d uncles", b.Header.Number, len(b.Header.Uncles))

	return v.verifyUncles(b, parent, p)
}

// verifyUncles checks each uncle is a known sibling of a recent ancestor
// that no ancestor already included.
func (v *Verifier) verifyUncles(b database.Block, parent database.Block, p Provider) error {
	ancestors := make(map[string]struct{})
	included := make(map[string]struct{})

	// Walk back far enough to see the parents of every uncle in range and
	// the uncles those ancestors already declared.
	current := parent
	for depth := uint64(0); depth <= v.genesis.UncleDepth; depth++ {
		ancestors[current.Hash()] = struct{}{}
		for _, uncle := range current.Header.Uncles {
			included[uncle] = struct{}{}
		}

		if current.Header.Number == 0 {
			break
		}

		next, exists := p.Block(current.Header.PrevBlockHash)
		if !exists {
			break
		}
		current = next
	}

	for _, id := range b.Header.Uncles {
		uncle, exists := p.Block(id)
		if !exists {
			return fmt.Errorf("%w: %s", ErrUnknownUncle, id)
		}

		if _, exists := ancestors[id]; exists {
			return fmt.Errorf("%w: %s", ErrUncleIsAncestor, id)
		}

		if _, exists := included[id]; exists {
			return fmt.Errorf("%w: %s", ErrUncleIncluded, id)
		}

		if uncle.Header.Number >= b.Header.Number || b.Header.Number-uncle.Header.Number > v.genesis.UncleDepth {
			return fmt.Errorf("%w: uncle %d, block %d", ErrUncleDepth, uncle.Header.Number, b.Header.Number)
		}

		if _, exists := ancestors[uncle.Header.PrevBlockHash]; !exists || uncle.Header.Number == b.Header.Number {
			return fmt.Errorf("%w: %s", ErrUncleDepth, id)
		}
	}

	return nil
}
