package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantprep/quantprep/internal/ir"
)

func codes(errs []ValidationError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Code)
	}
	return out
}

func TestValidateNilGraph(t *testing.T) {
	errs := Validate(nil)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrNilGraph, errs[0].Code)
}

func TestValidateEmptyGraph(t *testing.T) {
	errs := Validate(ir.NewGraph())
	require.Len(t, errs, 1)
	assert.Equal(t, ErrEmptyGraph, errs[0].Code)
}

func TestValidateCleanGraph(t *testing.T) {
	g := ir.NewGraph()
	x := g.MustAddNode("x", ir.OpInput, "")
	n := g.MustAddNode("n", ir.OpCall, "aten.relu", ir.NodeRef(x))
	n.SetAnnotation(&ir.Annotation{
		Inputs: []ir.InputSpec{
			{Producer: "x", Spec: ir.QuantSpec{DType: ir.DTypeInt8, IsDynamic: ir.Bool(false)}},
		},
		Output: ir.SharedWith{Target: ir.InputEdge("x", "n")},
	})

	assert.Empty(t, Validate(g))
}

func TestValidateUnknownProducer(t *testing.T) {
	g := ir.NewGraph()
	x := g.MustAddNode("x", ir.OpInput, "")
	n := g.MustAddNode("n", ir.OpCall, "aten.relu", ir.NodeRef(x))
	n.SetAnnotation(&ir.Annotation{
		Inputs: []ir.InputSpec{
			{Producer: "ghost", Spec: ir.QuantSpec{DType: ir.DTypeInt8}},
		},
	})

	assert.Contains(t, codes(Validate(g)), ErrUnknownProducer)
}

func TestValidateProducerNotAnArgument(t *testing.T) {
	g := ir.NewGraph()
	x := g.MustAddNode("x", ir.OpInput, "")
	g.MustAddNode("y", ir.OpInput, "")
	n := g.MustAddNode("n", ir.OpCall, "aten.relu", ir.NodeRef(x))
	n.SetAnnotation(&ir.Annotation{
		Inputs: []ir.InputSpec{
			{Producer: "y", Spec: ir.QuantSpec{DType: ir.DTypeInt8}},
		},
	})

	assert.Contains(t, codes(Validate(g)), ErrProducerNotInput)
}

func TestValidateProducerInsideListArgument(t *testing.T) {
	g := ir.NewGraph()
	a := g.MustAddNode("a", ir.OpInput, "")
	b := g.MustAddNode("b", ir.OpInput, "")
	n := g.MustAddNode("n", ir.OpCall, "aten.cat", ir.List(ir.NodeRef(a), ir.NodeRef(b)))
	n.SetAnnotation(&ir.Annotation{
		Inputs: []ir.InputSpec{
			{Producer: "b", Spec: ir.QuantSpec{DType: ir.DTypeInt8}},
		},
	})

	assert.Empty(t, Validate(g), "list arguments count as inputs")
}

func TestValidateDuplicateInputSpec(t *testing.T) {
	g := ir.NewGraph()
	x := g.MustAddNode("x", ir.OpInput, "")
	n := g.MustAddNode("n", ir.OpCall, "aten.relu", ir.NodeRef(x))
	n.SetAnnotation(&ir.Annotation{
		Inputs: []ir.InputSpec{
			{Producer: "x", Spec: ir.QuantSpec{DType: ir.DTypeInt8}},
			{Producer: "x", Spec: ir.QuantSpec{DType: ir.DTypeUInt8}},
		},
	})

	assert.Contains(t, codes(Validate(g)), ErrDuplicateInput)
}

func TestValidateInvalidDType(t *testing.T) {
	g := ir.NewGraph()
	x := g.MustAddNode("x", ir.OpInput, "")
	n := g.MustAddNode("n", ir.OpCall, "aten.relu", ir.NodeRef(x))
	n.SetAnnotation(&ir.Annotation{
		Inputs: []ir.InputSpec{
			{Producer: "x", Spec: ir.QuantSpec{DType: ir.DType("int7")}},
		},
	})

	assert.Contains(t, codes(Validate(g)), ErrInvalidDType)
}

func TestValidateShareTargetUnknown(t *testing.T) {
	g := ir.NewGraph()
	x := g.MustAddNode("x", ir.OpInput, "")
	n := g.MustAddNode("n", ir.OpCall, "aten.relu", ir.NodeRef(x))
	n.SetAnnotation(&ir.Annotation{
		Output: ir.SharedWith{Target: ir.NodeOutput("ghost")},
	})

	assert.Contains(t, codes(Validate(g)), ErrShareTargetUnknown)
}

func TestValidateShareSelf(t *testing.T) {
	g := ir.NewGraph()
	x := g.MustAddNode("x", ir.OpInput, "")
	n := g.MustAddNode("n", ir.OpCall, "aten.relu", ir.NodeRef(x))
	n.SetAnnotation(&ir.Annotation{
		Output: ir.SharedWith{Target: ir.NodeOutput("n")},
	})

	assert.Contains(t, codes(Validate(g)), ErrShareSelf)
}

func TestValidateObserverUnbound(t *testing.T) {
	g := ir.NewGraph()
	x := g.MustAddNode("x", ir.OpInput, "")
	g.MustAddNode("obs_0", ir.OpObserver, "missing-id", ir.NodeRef(x))

	assert.Contains(t, codes(Validate(g)), ErrObserverUnbound)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	// Validation never fails fast: every problem is reported at once.
	g := ir.NewGraph()
	x := g.MustAddNode("x", ir.OpInput, "")
	n := g.MustAddNode("n", ir.OpCall, "aten.relu", ir.NodeRef(x))
	n.SetAnnotation(&ir.Annotation{
		Inputs: []ir.InputSpec{
			{Producer: "ghost", Spec: ir.QuantSpec{DType: ir.DType("int7")}},
		},
		Output: ir.SharedWith{Target: ir.NodeOutput("n")},
	})

	got := codes(Validate(g))
	assert.Contains(t, got, ErrUnknownProducer)
	assert.Contains(t, got, ErrInvalidDType)
	assert.Contains(t, got, ErrShareSelf)
}
