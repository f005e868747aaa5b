package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantprep/quantprep/internal/ir"
)

func TestAnalyzeSharingNoReferences(t *testing.T) {
	g := ir.NewGraph()
	x := g.MustAddNode("x", ir.OpInput, "")
	n := g.MustAddNode("n", ir.OpCall, "aten.relu", ir.NodeRef(x))
	n.SetAnnotation(&ir.Annotation{
		Inputs: []ir.InputSpec{
			{Producer: "x", Spec: ir.QuantSpec{DType: ir.DTypeInt8}},
		},
	})

	assert.Empty(t, AnalyzeSharing(g))
}

func TestAnalyzeSharingAcyclicChain(t *testing.T) {
	// b->n shares with a->n, output shares with b->n: a DAG.
	g := ir.NewGraph()
	a := g.MustAddNode("a", ir.OpInput, "")
	b := g.MustAddNode("b", ir.OpInput, "")
	n := g.MustAddNode("n", ir.OpCall, "aten.cat", ir.List(ir.NodeRef(a), ir.NodeRef(b)))
	n.SetAnnotation(&ir.Annotation{
		Inputs: []ir.InputSpec{
			{Producer: "a", Spec: ir.QuantSpec{DType: ir.DTypeInt8}},
			{Producer: "b", Spec: ir.SharedWith{Target: ir.InputEdge("a", "n")}},
		},
		Output: ir.SharedWith{Target: ir.InputEdge("b", "n")},
	})

	assert.Empty(t, AnalyzeSharing(g))
}

func TestAnalyzeSharingTwoPositionCycle(t *testing.T) {
	g := ir.NewGraph()
	a := g.MustAddNode("a", ir.OpInput, "")
	b := g.MustAddNode("b", ir.OpInput, "")
	n := g.MustAddNode("n", ir.OpCall, "aten.cat", ir.List(ir.NodeRef(a), ir.NodeRef(b)))
	n.SetAnnotation(&ir.Annotation{
		Inputs: []ir.InputSpec{
			{Producer: "a", Spec: ir.SharedWith{Target: ir.InputEdge("b", "n")}},
			{Producer: "b", Spec: ir.SharedWith{Target: ir.InputEdge("a", "n")}},
		},
	})

	warnings := AnalyzeSharing(g)
	require.Len(t, warnings, 1)
	assert.Equal(t, "warning", warnings[0].Level)
	assert.Contains(t, warnings[0].Message, "cyclic share_with references")
	assert.GreaterOrEqual(t, len(warnings[0].Path), 3)
	assert.Equal(t, warnings[0].Path[0], warnings[0].Path[len(warnings[0].Path)-1],
		"path must close the cycle")
}

func TestAnalyzeSharingSelfLoop(t *testing.T) {
	g := ir.NewGraph()
	x := g.MustAddNode("x", ir.OpInput, "")
	n := g.MustAddNode("n", ir.OpCall, "aten.relu", ir.NodeRef(x))
	n.SetAnnotation(&ir.Annotation{
		Output: ir.SharedWith{Target: ir.NodeOutput("n")},
	})

	warnings := AnalyzeSharing(g)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"node:n", "node:n"}, warnings[0].Path)
	assert.Contains(t, warnings[0].Message, "shares with itself")
}
