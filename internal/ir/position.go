package ir

import (
	"fmt"
	"strings"
)

// PositionKind discriminates the two Position variants.
type PositionKind int

const (
	// PositionNode is a node's output value.
	PositionNode PositionKind = iota

	// PositionEdge is one argument flowing from a producer into a consumer.
	PositionEdge
)

// Position identifies a graph location that can be independently observed:
// either the output of a node, or a single (producer, consumer) input edge.
//
// Position is a comparable value type so it can key maps and union-find
// parent tables. Node identity is by name, never by pointer - positions
// remain stable while the graph is mutated underneath them.
type Position struct {
	Kind PositionKind

	// Producer is the upstream node name. Only set for PositionEdge.
	Producer string

	// Node is the node whose output is observed (PositionNode), or the
	// consumer node of the edge (PositionEdge).
	Node string
}

// NodeOutput returns the Position for a node's output value.
func NodeOutput(name string) Position {
	return Position{Kind: PositionNode, Node: name}
}

// InputEdge returns the Position for the argument edge producer -> consumer.
func InputEdge(producer, consumer string) Position {
	return Position{Kind: PositionEdge, Producer: producer, Node: consumer}
}

// IsEdge reports whether p is an input-edge position.
func (p Position) IsEdge() bool {
	return p.Kind == PositionEdge
}

// String renders a stable, parseable form used in logs, error details,
// and the provenance store.
//
//	node:op1
//	edge:op1->cat1
func (p Position) String() string {
	if p.Kind == PositionEdge {
		return "edge:" + p.Producer + "->" + p.Node
	}
	return "node:" + p.Node
}

// ParsePosition parses the String form back into a Position.
// Used by the store read path.
func ParsePosition(s string) (Position, error) {
	switch {
	case strings.HasPrefix(s, "node:"):
		name := strings.TrimPrefix(s, "node:")
		if name == "" {
			return Position{}, fmt.Errorf("parse position %q: empty node name", s)
		}
		return NodeOutput(name), nil

	case strings.HasPrefix(s, "edge:"):
		rest := strings.TrimPrefix(s, "edge:")
		producer, consumer, ok := strings.Cut(rest, "->")
		if !ok || producer == "" || consumer == "" {
			return Position{}, fmt.Errorf("parse position %q: want edge:producer->consumer", s)
		}
		return InputEdge(producer, consumer), nil

	default:
		return Position{}, fmt.Errorf("parse position %q: unknown prefix", s)
	}
}
