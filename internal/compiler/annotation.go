package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/quantprep/quantprep/internal/ir"
)

// compileAnnotation parses a node's annotation block:
//
//	annotation: {
//		inputs: [
//			{producer: "op1", dtype: "int8", is_dynamic: false},
//			{producer: "op2", share_with: {edge: ["op1", "cat1"]}},
//		]
//		output: {share_with: {edge: ["op1", "cat1"]}}
//	}
//
// The inputs list order is preserved exactly: it feeds the prepare
// pass's registration order.
func compileAnnotation(nodeName string, v cue.Value) (*ir.Annotation, error) {
	ann := &ir.Annotation{}

	if inputsVal := v.LookupPath(cue.ParsePath("inputs")); inputsVal.Exists() {
		iter, err := inputsVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			in, err := compileInputSpec(nodeName, iter.Value())
			if err != nil {
				return nil, err
			}
			ann.Inputs = append(ann.Inputs, in)
		}
	}

	if outVal := v.LookupPath(cue.ParsePath("output")); outVal.Exists() {
		spec, err := compileSpec(fmt.Sprintf("nodes.%s.annotation.output", nodeName), outVal)
		if err != nil {
			return nil, err
		}
		ann.Output = spec
	}

	if len(ann.Inputs) == 0 && ann.Output == nil {
		return nil, &CompileError{
			Field:   fmt.Sprintf("nodes.%s.annotation", nodeName),
			Message: "annotation must declare at least one input spec or an output spec",
			Pos:     v.Pos(),
		}
	}
	return ann, nil
}

func compileInputSpec(nodeName string, v cue.Value) (ir.InputSpec, error) {
	field := fmt.Sprintf("nodes.%s.annotation.inputs", nodeName)

	producerVal := v.LookupPath(cue.ParsePath("producer"))
	if !producerVal.Exists() {
		return ir.InputSpec{}, &CompileError{
			Field:   field,
			Message: "input spec requires a producer node name",
			Pos:     v.Pos(),
		}
	}
	producer, err := producerVal.String()
	if err != nil {
		return ir.InputSpec{}, formatCUEError(err)
	}

	spec, err := compileSpec(field, v)
	if err != nil {
		return ir.InputSpec{}, err
	}
	return ir.InputSpec{Producer: producer, Spec: spec}, nil
}

// compileSpec parses one observation spec. Exactly one of two shapes:
//
//	{dtype?: "int8", is_dynamic?: bool}    -> concrete spec
//	{share_with: {node: "op1"}}            -> reference to a node output
//	{share_with: {edge: ["op1", "cat1"]}}  -> reference to an input edge
//
// Both concrete fields are optional; absence is meaningful and kept
// distinct from any concrete value.
func compileSpec(field string, v cue.Value) (ir.Spec, error) {
	if swVal := v.LookupPath(cue.ParsePath("share_with")); swVal.Exists() {
		target, err := compileShareTarget(field, swVal)
		if err != nil {
			return nil, err
		}
		return ir.SharedWith{Target: target}, nil
	}

	spec := ir.QuantSpec{}
	if dtVal := v.LookupPath(cue.ParsePath("dtype")); dtVal.Exists() {
		dt, err := dtVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if !ir.ValidDTypes[ir.DType(dt)] {
			return nil, &CompileError{
				Field:   field,
				Message: fmt.Sprintf("unknown dtype %q", dt),
				Pos:     dtVal.Pos(),
			}
		}
		spec.DType = ir.DType(dt)
	}
	if dynVal := v.LookupPath(cue.ParsePath("is_dynamic")); dynVal.Exists() {
		dyn, err := dynVal.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		spec.IsDynamic = ir.Bool(dyn)
	}
	return spec, nil
}

func compileShareTarget(field string, v cue.Value) (ir.Position, error) {
	nodeVal := v.LookupPath(cue.ParsePath("node"))
	edgeVal := v.LookupPath(cue.ParsePath("edge"))

	switch {
	case nodeVal.Exists() && edgeVal.Exists():
		return ir.Position{}, &CompileError{
			Field:   field,
			Message: "share_with must name either a node or an edge, not both",
			Pos:     v.Pos(),
		}

	case nodeVal.Exists():
		name, err := nodeVal.String()
		if err != nil {
			return ir.Position{}, formatCUEError(err)
		}
		return ir.NodeOutput(name), nil

	case edgeVal.Exists():
		iter, err := edgeVal.List()
		if err != nil {
			return ir.Position{}, formatCUEError(err)
		}
		var parts []string
		for iter.Next() {
			s, err := iter.Value().String()
			if err != nil {
				return ir.Position{}, formatCUEError(err)
			}
			parts = append(parts, s)
		}
		if len(parts) != 2 {
			return ir.Position{}, &CompileError{
				Field:   field,
				Message: "share_with edge must be a [producer, consumer] pair",
				Pos:     edgeVal.Pos(),
			}
		}
		return ir.InputEdge(parts[0], parts[1]), nil

	default:
		return ir.Position{}, &CompileError{
			Field:   field,
			Message: "share_with requires a node or edge target",
			Pos:     v.Pos(),
		}
	}
}
