package bayes

import (
	"errors"
	"fmt"
)

var (
	// ErrStructural is the parent of every error caused by an invalid graph
	// shape or an invalid node/arc reference.
	ErrStructural = errors.New("structural error")

	ErrCycle         = &structuralError{msg: "arc would create a cycle"}
	ErrUnknownNode   = &structuralError{msg: "unknown node"}
	ErrDuplicateNode = &structuralError{msg: "duplicate node"}
	ErrDuplicateArc  = &structuralError{msg: "duplicate arc"}
	ErrInvalidArc    = &structuralError{msg: "invalid arc"}

	ErrShapeMismatch      = errors.New("table shape mismatch")
	ErrNotAProbability    = errors.New("table slice is not a probability distribution")
	ErrEmptyDomain        = errors.New("domain must contain at least one label")
	ErrDuplicateLabel     = errors.New("duplicate label in domain")
	ErrRoleMismatch       = errors.New("operation not valid for node role")
	ErrFrozen             = errors.New("graph is frozen")
	ErrInvalidValue       = errors.New("value not in node domain")
	ErrMissingTable       = errors.New("node has no table")
	ErrImpossibleEvidence = errors.New("evidence has zero probability")
)

// structuralError is a sentinel that also matches ErrStructural under errors.Is.
type structuralError struct {
	msg string
}

func (e *structuralError) Error() string { return e.msg }

func (e *structuralError) Is(target error) bool {
	return target == ErrStructural
}

// ValueError reports a label that could not be resolved against a node's domain.
type ValueError struct {
	Node  string
	Value string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("%v: %q for node %q", ErrInvalidValue, e.Value, e.Node)
}

func (e *ValueError) Unwrap() error { return ErrInvalidValue }

func unknownNode(name string) error {
	return fmt.Errorf("%w: %q", ErrUnknownNode, name)
}
