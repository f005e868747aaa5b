package compiler

import (
	"fmt"

	"github.com/quantprep/quantprep/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrNilGraph = "E100" // no graph to validate

	// Graph structure errors (E101-E109)
	ErrEmptyGraph       = "E101" // graph has no nodes
	ErrUnknownProducer  = "E102" // input spec producer is not a graph node
	ErrProducerNotInput = "E103" // input spec producer is not an argument of the node
	ErrInvalidDType     = "E104" // dtype is not a known tensor dtype
	ErrDuplicateInput   = "E105" // producer annotated twice on one node

	// Sharing reference errors (E110-E119)
	ErrShareTargetUnknown = "E110" // share_with target is not an annotated position
	ErrShareSelf          = "E111" // spec shares with its own position
	ErrObserverUnbound    = "E112" // observer node references an unbound instance
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled graph against schema rules.
// Returns all errors found (does not fail-fast).
//
// The compiler front-end already rejects most of these; Validate is the
// backstop for graphs built programmatically or loaded from storage.
func Validate(g *ir.Graph) []ValidationError {
	if g == nil {
		return []ValidationError{{
			Field:   "graph",
			Message: "no graph to validate",
			Code:    ErrNilGraph,
		}}
	}

	var errs []ValidationError

	if g.Len() == 0 {
		errs = append(errs, ValidationError{
			Field:   "nodes",
			Message: "at least one node is required",
			Code:    ErrEmptyGraph,
		})
	}

	annotated := collectAnnotatedPositions(g)

	for _, n := range g.Nodes() {
		errs = append(errs, validateNode(g, n, annotated)...)
	}
	return errs
}

// collectAnnotatedPositions gathers every position an annotation
// declares, so share_with targets can be checked for existence.
func collectAnnotatedPositions(g *ir.Graph) map[ir.Position]bool {
	positions := make(map[ir.Position]bool)
	for _, n := range g.Nodes() {
		ann := n.Annotation()
		if ann == nil {
			continue
		}
		for _, in := range ann.Inputs {
			positions[ir.InputEdge(in.Producer, n.Name())] = true
		}
		if ann.Output != nil {
			positions[ir.NodeOutput(n.Name())] = true
		}
	}
	return positions
}

func validateNode(g *ir.Graph, n *ir.Node, annotated map[ir.Position]bool) []ValidationError {
	var errs []ValidationError

	if n.Op() == ir.OpObserver && g.Observer(n.Target()) == nil {
		errs = append(errs, ValidationError{
			Field:   fmt.Sprintf("nodes.%s", n.Name()),
			Message: fmt.Sprintf("observer node references unbound instance %q", n.Target()),
			Code:    ErrObserverUnbound,
		})
	}

	ann := n.Annotation()
	if ann == nil {
		return errs
	}

	argProducers := make(map[string]bool)
	for _, ref := range argNodeNames(n.Args()) {
		argProducers[ref] = true
	}

	seen := make(map[string]bool)
	for i, in := range ann.Inputs {
		field := fmt.Sprintf("nodes.%s.annotation.inputs[%d]", n.Name(), i)

		// E105: duplicate producer
		if seen[in.Producer] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate input spec for producer %q", in.Producer),
				Code:    ErrDuplicateInput,
			})
		}
		seen[in.Producer] = true

		// E102: producer must exist
		if g.Node(in.Producer) == nil {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("producer %q is not a node in the graph", in.Producer),
				Code:    ErrUnknownProducer,
			})
		} else if !argProducers[in.Producer] {
			// E103: producer must actually feed this node
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("producer %q is not an argument of node %q", in.Producer, n.Name()),
				Code:    ErrProducerNotInput,
			})
		}

		errs = append(errs, validateSpec(in.Spec, field, ir.InputEdge(in.Producer, n.Name()), annotated)...)
	}

	if ann.Output != nil {
		field := fmt.Sprintf("nodes.%s.annotation.output", n.Name())
		errs = append(errs, validateSpec(ann.Output, field, ir.NodeOutput(n.Name()), annotated)...)
	}
	return errs
}

func validateSpec(spec ir.Spec, field string, at ir.Position, annotated map[ir.Position]bool) []ValidationError {
	var errs []ValidationError

	switch s := spec.(type) {
	case ir.QuantSpec:
		// E104: dtype, when set, must be a known tensor dtype
		if s.DType != ir.DTypeUnset && !ir.ValidDTypes[s.DType] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("invalid dtype %q", s.DType),
				Code:    ErrInvalidDType,
			})
		}

	case ir.SharedWith:
		// E111: self reference
		if s.Target == at {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("position %s shares with itself", at),
				Code:    ErrShareSelf,
			})
		}
		// E110: target must be an annotated position
		if !annotated[s.Target] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("share_with target %s is not an annotated position", s.Target),
				Code:    ErrShareTargetUnknown,
			})
		}
	}
	return errs
}

// argNodeNames flattens the node references of an argument list,
// recursing into list arguments.
func argNodeNames(args []ir.Arg) []string {
	var names []string
	var walk func(a ir.Arg)
	walk = func(a ir.Arg) {
		switch v := a.(type) {
		case ir.NodeArg:
			names = append(names, v.Node.Name())
		case ir.ListArg:
			for _, inner := range v {
				walk(inner)
			}
		}
	}
	for _, a := range args {
		walk(a)
	}
	return names
}
