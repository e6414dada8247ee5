package chain

import "fmt"

// Status represents where a block is in the verification process.
type Status int

// Set of verification states. Rejected is terminal and reachable from any
// phase.
const (
	Unverified Status = iota
	BasicOK
	UnorderedOK
	FamilyOK
	Rejected
)

var statusNames = map[Status]string{
	Unverified:  "unverified",
	BasicOK:     "basic-ok",
	UnorderedOK: "unordered-ok",
	FamilyOK:    "family-ok",
	Rejected:    "rejected",
}

// String implements the fmt.Stringer interface.
func (s Status) String() string {
	if name, exists := statusNames[s]; exists {
		return name
	}

	return fmt.Sprintf("status(%d)", int(s))
}

// =============================================================================

// Verification walks a single block through the verifier phases in order.
// A phase is only executed when the previous phase succeeded. A Verification
// is not safe for concurrent use; verify independent blocks with independent
// values.
type Verification[ID comparable, B any] struct {
	verifier Verifier[ID, B]
	block    B
	status   Status
	err      error
}

// NewVerification constructs a verification for the specified block.
func NewVerification[ID comparable, B any](verifier Verifier[ID, B], block B) *Verification[ID, B] {
	return &Verification[ID, B]{
		verifier: verifier,
		block:    block,
	}
}

// Status returns the current status of the verification.
func (v *Verification[ID, B]) Status() Status {
	return v.status
}

// Err returns the error that rejected the block, if any.
func (v *Verification[ID, B]) Err() error {
	return v.err
}

// Accepted reports whether all three phases succeeded.
func (v *Verification[ID, B]) Accepted() bool {
	return v.status == FamilyOK
}

// Basic runs the basic phase.
func (v *Verification[ID, B]) Basic() error {
	return v.step(Unverified, BasicOK, PhaseBasic, func() error {
		return v.verifier.VerifyBasic(v.block)
	})
}

// Unordered runs the unordered phase. Basic must have succeeded.
func (v *Verification[ID, B]) Unordered() error {
	return v.step(BasicOK, UnorderedOK, PhaseUnordered, func() error {
		return v.verifier.VerifyUnordered(v.block)
	})
}

// Family runs the family phase against the provider. Unordered must have
// succeeded.
func (v *Verification[ID, B]) Family(provider Provider[ID, B]) error {
	return v.step(UnorderedOK, FamilyOK, PhaseFamily, func() error {
		return v.verifier.VerifyFamily(v.block, provider)
	})
}

// Run executes every remaining phase in order and stops at the first error.
func (v *Verification[ID, B]) Run(provider Provider[ID, B]) error {
	if v.status == Unverified {
		if err := v.Basic(); err != nil {
			return err
		}
	}

	if v.status == BasicOK {
		if err := v.Unordered(); err != nil {
			return err
		}
	}

	if v.status == UnorderedOK {
		if err := v.Family(provider); err != nil {
			return err
		}
	}

	if v.status == Rejected {
		return v.err
	}

	return nil
}

// step executes fn when the verification is in the from state and moves it
// to the to state, or to Rejected on failure.
func (v *Verification[ID, B]) step(from Status, to Status, phase Phase, fn func() error) error {
	if v.status == Rejected {
		return v.err
	}

	if v.status != from {
		return NewPhaseError(phase, fmt.Errorf("%w: status %s, need %s", ErrOutOfOrder, v.status, from))
	}

	if err := fn(); err != nil {
		v.status = Rejected
		v.err = NewPhaseError(phase, err)
		return v.err
	}

	v.status = to
	return nil
}
