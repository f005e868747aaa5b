package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_AddNode_CreationOrder(t *testing.T) {
	g := NewGraph()
	x := g.MustAddNode("x", OpInput, "")
	op1 := g.MustAddNode("op1", OpCall, "aten.relu", NodeRef(x))
	out := g.MustAddNode("out", OpOutput, "", NodeRef(op1))

	nodes := g.Nodes()
	require.Len(t, nodes, 3)
	assert.Same(t, x, nodes[0])
	assert.Same(t, op1, nodes[1])
	assert.Same(t, out, nodes[2])
}

func TestGraph_AddNode_DuplicateName(t *testing.T) {
	g := NewGraph()
	g.MustAddNode("x", OpInput, "")

	_, err := g.AddNode("x", OpCall, "aten.relu")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate name")
}

func TestGraph_AddNode_ForeignArg(t *testing.T) {
	g1 := NewGraph()
	g2 := NewGraph()
	x := g1.MustAddNode("x", OpInput, "")

	_, err := g2.AddNode("op1", OpCall, "aten.relu", NodeRef(x))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "different graph")
}

func TestGraph_Users_FirstUseOrder(t *testing.T) {
	g := NewGraph()
	x := g.MustAddNode("x", OpInput, "")
	a := g.MustAddNode("a", OpCall, "aten.relu", NodeRef(x))
	b := g.MustAddNode("b", OpCall, "aten.relu", NodeRef(x))

	users := x.Users()
	require.Len(t, users, 2)
	assert.Same(t, a, users[0])
	assert.Same(t, b, users[1])
}

func TestGraph_Users_DeduplicatedAcrossArgs(t *testing.T) {
	g := NewGraph()
	x := g.MustAddNode("x", OpInput, "")
	add := g.MustAddNode("add", OpCall, "aten.add", NodeRef(x), NodeRef(x))

	users := x.Users()
	require.Len(t, users, 1)
	assert.Same(t, add, users[0])
}

func TestGraph_NestedListArgs_RegisterUsers(t *testing.T) {
	g := NewGraph()
	x := g.MustAddNode("x", OpInput, "")
	y := g.MustAddNode("y", OpInput, "")
	cat := g.MustAddNode("cat", OpCall, "aten.cat", List(NodeRef(x), NodeRef(y)), Literal(0))

	require.Len(t, x.Users(), 1)
	require.Len(t, y.Users(), 1)
	assert.Same(t, cat, x.Users()[0])
}

func TestGraph_InsertAfter_Position(t *testing.T) {
	g := NewGraph()
	x := g.MustAddNode("x", OpInput, "")
	op1 := g.MustAddNode("op1", OpCall, "aten.relu", NodeRef(x))
	g.MustAddNode("out", OpOutput, "", NodeRef(op1))

	obs, err := g.InsertAfter(op1, "obs_0", OpObserver, "obs-1", NodeRef(op1))
	require.NoError(t, err)

	nodes := g.Nodes()
	require.Len(t, nodes, 4)
	assert.Equal(t, "op1", nodes[1].Name())
	assert.Equal(t, "obs_0", nodes[2].Name())
	assert.Equal(t, "out", nodes[3].Name())
	assert.Same(t, obs, g.Node("obs_0"))
}

func TestGraph_InsertAfter_NotInGraph(t *testing.T) {
	g := NewGraph()
	other := NewGraph()
	foreign := other.MustAddNode("f", OpInput, "")

	_, err := g.InsertAfter(foreign, "obs_0", OpObserver, "obs-1")
	require.Error(t, err)
}

func TestNode_ReplaceInputWith(t *testing.T) {
	g := NewGraph()
	x := g.MustAddNode("x", OpInput, "")
	op1 := g.MustAddNode("op1", OpCall, "aten.relu", NodeRef(x))
	out := g.MustAddNode("out", OpOutput, "", NodeRef(op1))
	obs := g.MustAddNode("obs_0", OpObserver, "obs-1", NodeRef(op1))

	out.ReplaceInputWith(op1, obs)

	// out now consumes obs, not op1
	require.Len(t, out.Args(), 1)
	assert.Same(t, obs, out.Args()[0].(NodeArg).Node)

	// op1's consumers are just the observer now
	users := op1.Users()
	require.Len(t, users, 1)
	assert.Same(t, obs, users[0])

	// obs gained out as a consumer
	assert.Contains(t, obs.Users(), out)
}

func TestNode_ReplaceInputWith_InsideList(t *testing.T) {
	g := NewGraph()
	x := g.MustAddNode("x", OpInput, "")
	y := g.MustAddNode("y", OpInput, "")
	cat := g.MustAddNode("cat", OpCall, "aten.cat", List(NodeRef(x), NodeRef(y)))
	obs := g.MustAddNode("obs_0", OpObserver, "obs-1", NodeRef(x))

	cat.ReplaceInputWith(x, obs)

	list := cat.Args()[0].(ListArg)
	assert.Same(t, obs, list[0].(NodeArg).Node)
	assert.Same(t, y, list[1].(NodeArg).Node)
	assert.NotContains(t, x.Users(), cat)
	assert.Contains(t, obs.Users(), cat)
}

func TestNode_SetArgs_ReindexesUsers(t *testing.T) {
	g := NewGraph()
	x := g.MustAddNode("x", OpInput, "")
	y := g.MustAddNode("y", OpInput, "")
	op1 := g.MustAddNode("op1", OpCall, "aten.relu", NodeRef(x))

	op1.SetArgs([]Arg{NodeRef(y)})

	assert.Empty(t, x.Users())
	require.Len(t, y.Users(), 1)
	assert.Same(t, op1, y.Users()[0])
}

func TestNode_SetKwarg_NodeValued(t *testing.T) {
	g := NewGraph()
	x := g.MustAddNode("x", OpInput, "")
	clone := g.MustAddNode("clone", OpCall, "aten.clone", NodeRef(x))

	clone.SetKwarg("memory_format", Literal("preserve"))
	assert.Equal(t, 1, clone.KwargCount())

	// literal kwargs do not disturb the consumer index
	require.Len(t, x.Users(), 1)
}

func TestGraph_FreshName(t *testing.T) {
	g := NewGraph()
	g.MustAddNode("obs_0", OpInput, "")

	assert.Equal(t, "obs_1", g.FreshName("obs"))
	assert.Equal(t, "act_0", g.FreshName("act"))
}

func TestDump_Deterministic(t *testing.T) {
	g := NewGraph()
	x := g.MustAddNode("x", OpInput, "")
	w := g.MustAddNode("w", OpInput, "")
	conv := g.MustAddNode("conv", OpCall, "aten.conv2d", NodeRef(x), NodeRef(w))
	clone := g.MustAddNode("clone", OpCall, "aten.clone", NodeRef(conv))
	clone.SetKwarg("memory_format", Literal("preserve"))
	g.MustAddNode("cat", OpCall, "aten.cat", List(NodeRef(conv), NodeRef(clone)), Literal(0))

	want := "x = input\n" +
		"w = input\n" +
		"conv = call<aten.conv2d>(x, w)\n" +
		"clone = call<aten.clone>(conv){memory_format: \"preserve\"}\n" +
		"cat = call<aten.cat>([conv, clone], 0)\n"
	assert.Equal(t, want, Dump(g))
	assert.Equal(t, Dump(g), Dump(g))
}
