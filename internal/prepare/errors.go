package prepare

import (
	"errors"
	"fmt"

	"github.com/quantprep/quantprep/internal/ir"
)

// PassError represents a fatal error detected during the preparation pass.
//
// Every PassError aborts the entire pass: the pass is deterministic, so a
// retry would reproduce the same failure. Callers must treat the graph as
// not-yet-prepared when an error is returned.
//
// PassError includes structured fields for diagnostics.
type PassError struct {
	// Code identifies the error category.
	Code PassErrorCode

	// Message is a human-readable description.
	Message string

	// Position identifies the affected position, when known.
	Position string

	// Node identifies the affected graph node, when known.
	Node string

	// Details contains additional context.
	Details map[string]string
}

// PassErrorCode categorizes pass errors.
type PassErrorCode string

const (
	// ErrCodeKeyNotFound indicates a union-find lookup on a position that
	// was never registered - a builder/ordering bug, not bad user input.
	ErrCodeKeyNotFound PassErrorCode = "KEY_NOT_FOUND"

	// ErrCodeCyclicSharingSpec indicates root-spec resolution exceeded
	// its recursion bound - the input annotations contain a sharing cycle.
	ErrCodeCyclicSharingSpec PassErrorCode = "CYCLIC_SHARING_SPEC"

	// ErrCodeUnexpectedKwargs indicates a node other than the exempted
	// clone operator carries keyword arguments at mutation time.
	ErrCodeUnexpectedKwargs PassErrorCode = "UNEXPECTED_KEYWORD_ARGUMENTS"

	// ErrCodeGroupInstanceMismatch indicates a deduplicated observer
	// node's bound instance disagrees with the instance computed for the
	// edge's group - a sharing-inference bug.
	ErrCodeGroupInstanceMismatch PassErrorCode = "GROUP_INSTANCE_MISMATCH"

	// ErrCodeMissingGroup indicates the backward walk through an observer
	// chain failed to resolve a bound instance for the true source edge.
	ErrCodeMissingGroup PassErrorCode = "MISSING_GROUP_FOR_OBSERVED_ARGUMENT"
)

// Error implements the error interface.
func (e *PassError) Error() string {
	switch {
	case e.Position != "" && e.Node != "":
		return fmt.Sprintf("%s: %s (position=%s, node=%s)", e.Code, e.Message, e.Position, e.Node)
	case e.Position != "":
		return fmt.Sprintf("%s: %s (position=%s)", e.Code, e.Message, e.Position)
	case e.Node != "":
		return fmt.Sprintf("%s: %s (node=%s)", e.Code, e.Message, e.Node)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// IsKeyNotFound returns true for unregistered-position errors.
// Uses errors.As to handle wrapped errors.
func IsKeyNotFound(err error) bool { return hasCode(err, ErrCodeKeyNotFound) }

// IsCyclicSharingSpec returns true for sharing-cycle errors.
func IsCyclicSharingSpec(err error) bool { return hasCode(err, ErrCodeCyclicSharingSpec) }

// IsUnexpectedKwargs returns true for keyword-argument invariant errors.
func IsUnexpectedKwargs(err error) bool { return hasCode(err, ErrCodeUnexpectedKwargs) }

// IsGroupInstanceMismatch returns true for deduplication mismatch errors.
func IsGroupInstanceMismatch(err error) bool { return hasCode(err, ErrCodeGroupInstanceMismatch) }

// IsMissingGroup returns true for unresolved-source-instance errors.
func IsMissingGroup(err error) bool { return hasCode(err, ErrCodeMissingGroup) }

func hasCode(err error, code PassErrorCode) bool {
	var pe *PassError
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// newKeyNotFoundError reports a Find on an unregistered position.
func newKeyNotFoundError(pos ir.Position) *PassError {
	return &PassError{
		Code:     ErrCodeKeyNotFound,
		Message:  "position was never registered with the sharing registry",
		Position: pos.String(),
	}
}

// newCyclicSharingSpecError reports root-spec resolution overrunning its
// depth bound.
func newCyclicSharingSpecError(start ir.Position, depth int) *PassError {
	return &PassError{
		Code:     ErrCodeCyclicSharingSpec,
		Message:  "shared-with resolution exceeded depth bound, annotations contain a cycle",
		Position: start.String(),
		Details: map[string]string{
			"max_depth": fmt.Sprintf("%d", depth),
		},
	}
}

// newUnexpectedKwargsError reports keyword arguments on a node that must
// not have any at mutation time.
func newUnexpectedKwargsError(node string, count int) *PassError {
	return &PassError{
		Code:    ErrCodeUnexpectedKwargs,
		Message: "expecting keyword arguments to be empty at observer insertion time",
		Node:    node,
		Details: map[string]string{
			"kwarg_count": fmt.Sprintf("%d", count),
		},
	}
}

// newGroupInstanceMismatchError reports a reusable observer node whose
// instance disagrees with the group's computed instance.
func newGroupInstanceMismatchError(edge ir.Position, obsNode string, want, got *ir.Observer) *PassError {
	return &PassError{
		Code:     ErrCodeGroupInstanceMismatch,
		Message:  "existing observer node is bound to a different instance than the edge's group",
		Position: edge.String(),
		Node:     obsNode,
		Details: map[string]string{
			"want": describeObserver(want),
			"got":  describeObserver(got),
		},
	}
}

// newMissingGroupError reports a failed backward walk to a bound source
// instance.
func newMissingGroupError(pos ir.Position, msg string) *PassError {
	return &PassError{
		Code:     ErrCodeMissingGroup,
		Message:  msg,
		Position: pos.String(),
	}
}

func describeObserver(o *ir.Observer) string {
	if o == nil {
		return "<none>"
	}
	return fmt.Sprintf("%s/%s/dynamic=%t", o.Kind, o.DType, o.Dynamic)
}
