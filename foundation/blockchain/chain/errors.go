package chain

import (
	"errors"
	"fmt"
)

// ErrOutOfOrder is returned when a verification phase is requested before
// the phases that must precede it have succeeded.
var ErrOutOfOrder = errors.New("verification phase out of order")

// =============================================================================

// Phase identifies the step of the import pipeline that produced an error.
type Phase int

// Set of phases in the order the pipeline runs them.
const (
	PhaseDecode Phase = iota + 1
	PhaseBasic
	PhaseUnordered
	PhaseFamily
	PhaseEnact
)

var phaseNames = map[Phase]string{
	PhaseDecode:    "decode",
	PhaseBasic:     "basic",
	PhaseUnordered: "unordered",
	PhaseFamily:    "family",
	PhaseEnact:     "enact",
}

// String implements the fmt.Stringer interface.
func (p Phase) String() string {
	if name, exists := phaseNames[p]; exists {
		return name
	}

	return fmt.Sprintf("phase(%d)", int(p))
}

// =============================================================================

// PhaseError is used to pass an error through the pipeline with the phase
// that produced it. Block content errors are permanent for that block.
type PhaseError struct {
	Phase Phase
	Err   error
}

// NewPhaseError wraps the provided error with the phase it came from.
func NewPhaseError(phase Phase, err error) error {
	return &PhaseError{Phase: phase, Err: err}
}

// Error implements the error interface.
func (pe *PhaseError) Error() string {
	return fmt.Sprintf("%s: %s", pe.Phase, pe.Err)
}

// Unwrap provides access to the underlying error.
func (pe *PhaseError) Unwrap() error {
	return pe.Err
}

// IsPhase checks if the error was produced by the specified phase.
func IsPhase(err error, phase Phase) bool {
	pe := GetPhaseError(err)
	return pe != nil && pe.Phase == phase
}

// GetPhaseError returns a copy of the PhaseError pointer.
func GetPhaseError(err error) *PhaseError {
	var pe *PhaseError
	if !errors.As(err, &pe) {
		return nil
	}
	return pe
}
