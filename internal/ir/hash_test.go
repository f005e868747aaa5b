package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildHashGraph(t *testing.T) *Graph {
	t.Helper()
	g := NewGraph()
	x := g.MustAddNode("x", OpInput, "")
	op1 := g.MustAddNode("op1", OpCall, "aten.relu", NodeRef(x))
	g.MustAddNode("out", OpOutput, "", NodeRef(op1))
	return g
}

func TestGraphHash_Stable(t *testing.T) {
	h1 := MustGraphHash(buildHashGraph(t))
	h2 := MustGraphHash(buildHashGraph(t))
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64) // hex SHA-256
}

func TestGraphHash_SensitiveToStructure(t *testing.T) {
	base := MustGraphHash(buildHashGraph(t))

	g := buildHashGraph(t)
	g.MustAddNode("extra", OpCall, "aten.relu", NodeRef(g.Node("op1")))
	assert.NotEqual(t, base, MustGraphHash(g))
}

func TestGraphHash_IgnoresAnnotations(t *testing.T) {
	g := buildHashGraph(t)
	base := MustGraphHash(g)

	g.Node("op1").SetAnnotation(&Annotation{Output: QuantSpec{DType: DTypeInt8}})
	g.Node("op1").SetTensorValued(true)
	assert.Equal(t, base, MustGraphHash(g))
}

func TestGraphHash_FloatLiteralRejected(t *testing.T) {
	g := NewGraph()
	x := g.MustAddNode("x", OpInput, "")
	g.MustAddNode("mul", OpCall, "aten.mul", NodeRef(x), Literal(0.5))

	_, err := GraphHash(g)
	require.Error(t, err)
}

func TestRunID_DependsOnMode(t *testing.T) {
	gh := MustGraphHash(buildHashGraph(t))

	eval, err := RunID(gh, false, ToolVersion)
	require.NoError(t, err)
	train, err := RunID(gh, true, ToolVersion)
	require.NoError(t, err)
	assert.NotEqual(t, eval, train)
}
