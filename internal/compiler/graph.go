package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/quantprep/quantprep/internal/ir"
)

// CompileGraph parses a CUE value into an ir.Graph with annotations.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the graph struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`graph: { nodes: [ ... ] }`)
//	g, err := CompileGraph(v.LookupPath(cue.ParsePath("graph")))
//
// Nodes are compiled in document order, which becomes the graph's
// creation order. Arguments may only reference earlier nodes.
func CompileGraph(v cue.Value) (*ir.Graph, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	nodesVal := v.LookupPath(cue.ParsePath("nodes"))
	if !nodesVal.Exists() {
		return nil, &CompileError{
			Field:   "nodes",
			Message: "nodes list is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := nodesVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	g := ir.NewGraph()
	for iter.Next() {
		if err := compileNode(g, iter.Value()); err != nil {
			return nil, err
		}
	}

	if g.Len() == 0 {
		return nil, &CompileError{
			Field:   "nodes",
			Message: "at least one node is required",
			Pos:     nodesVal.Pos(),
		}
	}
	return g, nil
}

func compileNode(g *ir.Graph, v cue.Value) error {
	name, err := requiredString(v, "name")
	if err != nil {
		return err
	}
	opStr, err := requiredString(v, "op")
	if err != nil {
		return err
	}
	op, err := parseOpKind(opStr, v)
	if err != nil {
		return err
	}

	target := ""
	if targetVal := v.LookupPath(cue.ParsePath("target")); targetVal.Exists() {
		target, err = targetVal.String()
		if err != nil {
			return formatCUEError(err)
		}
	}
	if op == ir.OpCall && target == "" {
		return &CompileError{
			Field:   fmt.Sprintf("nodes.%s.target", name),
			Message: "call nodes require a target operator",
			Pos:     v.Pos(),
		}
	}
	if op == ir.OpObserver {
		// Observer nodes are placed by the prepare pass, never declared.
		return &CompileError{
			Field:   fmt.Sprintf("nodes.%s.op", name),
			Message: "observer nodes cannot be declared in a graph document",
			Pos:     v.Pos(),
		}
	}

	var args []ir.Arg
	if argsVal := v.LookupPath(cue.ParsePath("args")); argsVal.Exists() {
		argIter, err := argsVal.List()
		if err != nil {
			return formatCUEError(err)
		}
		for argIter.Next() {
			a, err := compileArg(g, name, argIter.Value())
			if err != nil {
				return err
			}
			args = append(args, a)
		}
	}

	n, err := g.AddNode(name, op, target, args...)
	if err != nil {
		return &CompileError{
			Field:   fmt.Sprintf("nodes.%s", name),
			Message: err.Error(),
			Pos:     v.Pos(),
		}
	}

	if kwVal := v.LookupPath(cue.ParsePath("kwargs")); kwVal.Exists() {
		kwIter, err := kwVal.Fields()
		if err != nil {
			return formatCUEError(err)
		}
		for kwIter.Next() {
			a, err := compileArg(g, name, kwIter.Value())
			if err != nil {
				return err
			}
			n.SetKwarg(kwIter.Label(), a)
		}
	}

	tensor := op == ir.OpCall || op == ir.OpInput
	if tVal := v.LookupPath(cue.ParsePath("tensor")); tVal.Exists() {
		tensor, err = tVal.Bool()
		if err != nil {
			return formatCUEError(err)
		}
	}
	n.SetTensorValued(tensor)

	if annVal := v.LookupPath(cue.ParsePath("annotation")); annVal.Exists() {
		ann, err := compileAnnotation(name, annVal)
		if err != nil {
			return err
		}
		n.SetAnnotation(ann)
	}
	return nil
}

// compileArg maps a CUE argument value to an ir.Arg:
//
//	"op1"            -> node reference
//	["op1", "op2"]   -> list argument (recursed)
//	{lit: value}     -> literal (string, int, or bool)
func compileArg(g *ir.Graph, nodeName string, v cue.Value) (ir.Arg, error) {
	if s, err := v.String(); err == nil {
		ref := g.Node(s)
		if ref == nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("nodes.%s.args", nodeName),
				Message: fmt.Sprintf("argument references unknown node %q (arguments may only reference earlier nodes)", s),
				Pos:     v.Pos(),
			}
		}
		return ir.NodeRef(ref), nil
	}

	if litVal := v.LookupPath(cue.ParsePath("lit")); litVal.Exists() {
		lit, err := compileLiteral(nodeName, litVal)
		if err != nil {
			return nil, err
		}
		return ir.Literal(lit), nil
	}

	listIter, err := v.List()
	if err != nil {
		return nil, &CompileError{
			Field:   fmt.Sprintf("nodes.%s.args", nodeName),
			Message: "argument must be a node name, a list, or {lit: value}",
			Pos:     v.Pos(),
		}
	}
	var list ir.ListArg
	for listIter.Next() {
		inner, err := compileArg(g, nodeName, listIter.Value())
		if err != nil {
			return nil, err
		}
		list = append(list, inner)
	}
	return list, nil
}

// compileLiteral extracts a canonically hashable literal value.
// Floats are forbidden: graph identity is content-addressed and float
// formatting is not canonical.
func compileLiteral(nodeName string, v cue.Value) (any, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return s, nil
	case cue.IntKind:
		i, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return i, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return b, nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   fmt.Sprintf("nodes.%s.args", nodeName),
			Message: "float literals are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return nil, &CompileError{
			Field:   fmt.Sprintf("nodes.%s.args", nodeName),
			Message: fmt.Sprintf("unsupported literal kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func parseOpKind(s string, v cue.Value) (ir.OpKind, error) {
	switch ir.OpKind(s) {
	case ir.OpInput, ir.OpCall, ir.OpOutput, ir.OpObserver:
		return ir.OpKind(s), nil
	default:
		return "", &CompileError{
			Field:   "op",
			Message: fmt.Sprintf("unknown op kind %q, must be \"input\", \"call\", or \"output\"", s),
			Pos:     v.Pos(),
		}
	}
}

func requiredString(v cue.Value, field string) (string, error) {
	fieldVal := v.LookupPath(cue.ParsePath(field))
	if !fieldVal.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fieldVal.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
