package chain

import "slices"

// Provider represents a read only lookup service over stored blocks. Both
// lookups are partial: a false return means the block is unknown, which is
// an expected outcome and not an error.
type Provider[ID comparable, B any] interface {

	// Block returns the stored block for the specified id.
	Block(id ID) (B, bool)

	// BlockID returns the id of the block at the specified number on the
	// chain the provider currently considers canonical.
	BlockID(num uint64) (ID, bool)
}

// TransactionProvider is implemented by providers that answer transaction
// lookups directly. The result must always equal the transactions of the
// block returned by Block for the same id.
type TransactionProvider[ID comparable, TX any] interface {
	Transactions(id ID) ([]TX, bool)
}

// UncleProvider is implemented by providers that answer uncle lookups
// directly. The result must always equal the uncles of the block returned by
// Block for the same id.
type UncleProvider[ID comparable, U any] interface {
	Uncles(id ID) ([]U, bool)
}

// =============================================================================

// Transactions returns a copy of the transactions for the specified block.
func Transactions[ID comparable, TX any, B Block[ID, TX]](p Provider[ID, B], id ID) ([]TX, bool) {
	if tp, ok := p.(TransactionProvider[ID, TX]); ok {
		return tp.Transactions(id)
	}

	block, exists := p.Block(id)
	if !exists {
		return nil, false
	}

	return slices.Clone(block.Transactions()), true
}

// Uncles returns a copy of the uncles declared by the specified block. It is
// only available for chains whose blocks implement UncleBlock.
func Uncles[ID comparable, U any, B UncleBlock[U]](p Provider[ID, B], id ID) ([]U, bool) {
	if up, ok := p.(UncleProvider[ID, U]); ok {
		return up.Uncles(id)
	}

	block, exists := p.Block(id)
	if !exists {
		return nil, false
	}

	return slices.Clone(block.Uncles()), true
}
