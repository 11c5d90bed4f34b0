package svgpdf

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed is matched by the errors caused by an invalid tree,
	// see MalformedError.
	ErrMalformed = errors.New("malformed scene")
	// ErrInternal is matched by invariant violations, see InternalError.
	ErrInternal = errors.New("internal error")
)

// MalformedError is returned for invalid input trees: unknown or
// recursive references (see svgscene.ReferenceError), trees
// deeper than Options.MaxDepth.
type MalformedError struct {
	Node string // id of the node, if any
	Err  error
}

func (e *MalformedError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("svgpdf: malformed node %s: %s", e.Node, e.Err)
	}
	return fmt.Sprintf("svgpdf: malformed scene: %s", e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// Is implements errors.Is, for ErrMalformed.
func (e *MalformedError) Is(target error) bool { return target == ErrMalformed }

// InternalError is returned when the converter reaches
// an inconsistent state. It denotes a bug.
type InternalError struct {
	Err error
}

func (e *InternalError) Error() string { return "svgpdf: internal error: " + e.Err.Error() }

func (e *InternalError) Unwrap() error { return e.Err }

// Is implements errors.Is, for ErrInternal.
func (e *InternalError) Is(target error) bool { return target == ErrInternal }

// errDepth is wrapped by the MalformedError returned for too deep trees.
var errDepth = errors.New("maximum nesting depth exceeded")
