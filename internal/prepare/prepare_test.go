package prepare

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantprep/quantprep/internal/ir"
)

// buildCatScenario builds the shared-concat graph used across the
// end-to-end tests:
//
//	x -> op1 -> cat1 -> cat2 -> out
//	x -> op2 -> cat1
//	x -> op3 -> cat2
//
// Annotations chain both concats into one sharing group: op1 and op2
// outputs carry int8 specs, cat1's edges and output share with the
// (op1, cat1) edge, and cat2's edges and output share with the
// (op3, cat2) edge.
func buildCatScenario() *ir.Graph {
	g := ir.NewGraph()
	x := g.MustAddNode("x", ir.OpInput, "")

	op1 := g.MustAddNode("op1", ir.OpCall, "aten.conv", ir.NodeRef(x))
	op1.SetTensorValued(true)
	op1.SetAnnotation(&ir.Annotation{Output: int8Spec()})

	op2 := g.MustAddNode("op2", ir.OpCall, "aten.conv", ir.NodeRef(x))
	op2.SetTensorValued(true)
	op2.SetAnnotation(&ir.Annotation{Output: int8Spec()})

	cat1 := g.MustAddNode("cat1", ir.OpCall, "aten.cat",
		ir.List(ir.NodeRef(op1), ir.NodeRef(op2)))
	cat1.SetTensorValued(true)
	e1 := ir.InputEdge("op1", "cat1")
	cat1.SetAnnotation(&ir.Annotation{
		Inputs: []ir.InputSpec{
			{Producer: "op1", Spec: int8Spec()},
			{Producer: "op2", Spec: ir.SharedWith{Target: e1}},
		},
		Output: ir.SharedWith{Target: e1},
	})

	op3 := g.MustAddNode("op3", ir.OpCall, "aten.conv", ir.NodeRef(x))
	op3.SetTensorValued(true)

	cat2 := g.MustAddNode("cat2", ir.OpCall, "aten.cat",
		ir.List(ir.NodeRef(cat1), ir.NodeRef(op3)))
	cat2.SetTensorValued(true)
	e2 := ir.InputEdge("op3", "cat2")
	cat2.SetAnnotation(&ir.Annotation{
		Inputs: []ir.InputSpec{
			{Producer: "op3", Spec: int8Spec()},
			{Producer: "cat1", Spec: ir.SharedWith{Target: e2}},
		},
		Output: ir.SharedWith{Target: e2},
	})

	g.MustAddNode("out", ir.OpOutput, "", ir.NodeRef(cat2))
	return g
}

func TestRunCatScenarioSingleGroup(t *testing.T) {
	g := buildCatScenario()
	report := runFixed(t, g)

	// All eight annotated positions collapse into one group sharing a
	// single instance.
	assert.Equal(t, 1, report.GroupCount())
	require.Len(t, report.Groups, 8)
	wantPositions := []ir.Position{
		ir.NodeOutput("op1"),
		ir.NodeOutput("op2"),
		ir.InputEdge("op1", "cat1"),
		ir.InputEdge("op2", "cat1"),
		ir.NodeOutput("cat1"),
		ir.InputEdge("op3", "cat2"),
		ir.InputEdge("cat1", "cat2"),
		ir.NodeOutput("cat2"),
	}
	gotPositions := make([]ir.Position, 0, len(report.Groups))
	for _, ga := range report.Groups {
		gotPositions = append(gotPositions, ga.Position)
		assert.Equal(t, 0, ga.GroupID, "position %s", ga.Position)
		assert.Equal(t, report.Groups[0].ObserverID, ga.ObserverID, "position %s", ga.Position)
	}
	assert.ElementsMatch(t, wantPositions, gotPositions)

	require.Len(t, report.Observers, 1)
	assert.Equal(t, ir.KindMinMax, report.Observers[0].Kind)
	assert.Equal(t, ir.DTypeInt8, report.Observers[0].DType)
	assert.Equal(t, 1, g.Observers())

	// One observer node per observed value: the outputs of op1, op2,
	// cat1, op3, and cat2.
	require.Len(t, report.Inserted, 5)
	sources := make([]string, 0, len(report.Inserted))
	for _, ins := range report.Inserted {
		sources = append(sources, ins.Source)
		assert.Equal(t, report.Observers[0].ObserverID, ins.ObserverID)
	}
	assert.Equal(t, []string{"op1", "op2", "cat1", "op3", "cat2"}, sources)

	assert.Equal(t, 7, report.NodesBefore)
	assert.Equal(t, 12, report.NodesAfter)
	assert.Equal(t, 12, g.Len())

	// The graph output reads the observed concat result.
	out := g.Node("out")
	args := out.Args()
	require.Len(t, args, 1)
	na, ok := args[0].(ir.NodeArg)
	require.True(t, ok)
	assert.Equal(t, ir.OpObserver, na.Node.Op())
}

func TestRunTwiceIsNoOp(t *testing.T) {
	g := buildCatScenario()
	first := runFixed(t, g)
	require.Len(t, first.Inserted, 5)
	nodesAfterFirst := g.Len()

	second := runFixed(t, g)

	assert.Empty(t, second.Inserted, "already-observed values must not be observed again")
	assert.Equal(t, nodesAfterFirst, g.Len())
	assert.Equal(t, second.NodesBefore, second.NodesAfter)
	assert.Equal(t, 1, second.GroupCount())
}

func TestRunDeterministic(t *testing.T) {
	g1 := buildCatScenario()
	r1 := runFixed(t, g1)
	d1 := ir.Dump(g1)

	for i := 0; i < 5; i++ {
		g2 := buildCatScenario()
		r2 := runFixed(t, g2)
		assert.Equal(t, r1, r2, "iteration %d", i)
		assert.Equal(t, d1, ir.Dump(g2), "iteration %d", i)
	}
}

func TestRunTrainingMode(t *testing.T) {
	g := buildCatScenario()
	report := runFixed(t, g, WithTraining(true))

	require.Len(t, report.Observers, 1)
	assert.Equal(t, ir.KindFakeQuant, report.Observers[0].Kind)
	assert.True(t, report.Training)
}

func TestRunIDDependsOnMode(t *testing.T) {
	eval := runFixed(t, buildCatScenario())
	train := runFixed(t, buildCatScenario(), WithTraining(true))

	assert.Equal(t, eval.GraphHash, train.GraphHash)
	assert.NotEqual(t, eval.RunID, train.RunID)
}

func TestRunPropagatesSharingErrors(t *testing.T) {
	g := ir.NewGraph()
	a := g.MustAddNode("a", ir.OpInput, "")
	b := g.MustAddNode("b", ir.OpInput, "")
	n := g.MustAddNode("n", ir.OpCall, "aten.cat",
		ir.List(ir.NodeRef(a), ir.NodeRef(b)))
	n.SetTensorValued(true)
	n.SetAnnotation(&ir.Annotation{
		Inputs: []ir.InputSpec{
			{Producer: "a", Spec: ir.SharedWith{Target: ir.InputEdge("b", "n")}},
			{Producer: "b", Spec: ir.SharedWith{Target: ir.InputEdge("a", "n")}},
		},
	})

	_, err := Run(g, WithMaxSpecDepth(8), WithObserverIDs(NewFixedGenerator()))
	require.Error(t, err)
	assert.True(t, IsCyclicSharingSpec(err))
}

func TestReportGroupLookup(t *testing.T) {
	report := runFixed(t, buildCatScenario())

	id, ok := report.GroupID(ir.NodeOutput("cat2"))
	require.True(t, ok)
	assert.Equal(t, 0, id)

	_, ok = report.GroupID(ir.NodeOutput("ghost"))
	assert.False(t, ok)
}
