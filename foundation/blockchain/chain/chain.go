// Package chain defines the contracts a concrete blockchain implements so the
// verification and enactment pipeline can be written once and reused across
// chains with different transaction formats, block identifiers and rules.
package chain

// EventHandler defines a function that is called when events occur in the
// processing of blocks.
type EventHandler func(v string, args ...any)

// Codec represents the behavior of a value that can be converted to raw
// bytes. The inverse operation is a DecodeFunc.
type Codec interface {
	Encode() ([]byte, error)
}

// DecodeFunc produces a block from raw bytes. Decoding must fail for bytes
// that do not represent a valid block, and decoding the output of Encode
// must reproduce an equal block.
type DecodeFunc[B any] func(data []byte) (B, error)

// Block represents the minimal shape of a block. Blocks are immutable once
// constructed and every accessor is free of side effects.
//
// Number starts at 0 for the genesis block and increases by exactly one from
// a parent to its child. That relationship is enforced by a Verifier, not by
// the block itself.
type Block[ID comparable, TX any] interface {
	Codec
	Parent() ID
	Number() uint64
	ID() ID
	Transactions() []TX
}

// UncleBlock is implemented by blocks of chains whose fork choice or reward
// rules recognize uncles.
type UncleBlock[U any] interface {
	Uncles() []U
}

// Verifier represents the three phase verification applied to a candidate
// block before it can be enacted. A phase may assume every earlier phase
// already succeeded for the same block.
type Verifier[ID comparable, B any] interface {

	// VerifyBasic performs cheap structural checks on the block itself. It
	// must not consult any provider or state.
	VerifyBasic(block B) error

	// VerifyUnordered performs the more expensive checks that only need the
	// block itself, such as transaction signatures.
	VerifyUnordered(block B) error

	// VerifyFamily performs the checks that need the block's ancestry or
	// uncles. The provider is the only source of that context and an absent
	// ancestor must be reported as an error.
	VerifyFamily(block B, provider Provider[ID, B]) error
}

// State represents the global state manipulated by blocks. Enact applies a
// block that already passed verification. On error no change is applied.
// Implementations serialize calls to Enact.
type State[B any] interface {
	Enact(block B) error
}

// Chain binds one block type to the decoder and verifier that belong to it.
// It carries no runtime state of its own.
type Chain[ID comparable, TX any, B Block[ID, TX]] struct {
	Decode   DecodeFunc[B]
	Verifier Verifier[ID, B]
}
