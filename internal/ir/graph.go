package ir

import (
	"fmt"
	"slices"
)

// OpKind classifies graph nodes.
type OpKind string

const (
	// OpInput is a graph input (placeholder) node. No target, no args.
	OpInput OpKind = "input"

	// OpCall applies an operator named by Target to the args.
	OpCall OpKind = "call"

	// OpObserver is an inserted observer node. Target carries the bound
	// observer instance ID; the single positional arg is the observed value.
	OpObserver OpKind = "observer"

	// OpOutput marks graph outputs.
	OpOutput OpKind = "output"
)

// Arg is a sealed union over the values a node argument can take:
// a reference to another node, an ordered list of arguments (recursed
// position-wise by the prepare pass), or an opaque literal.
// Only NodeArg, ListArg, and LiteralArg implement it.
type Arg interface {
	arg() // Sealed - only ir types implement it.
}

// NodeArg references another node's output.
type NodeArg struct{ Node *Node }

func (NodeArg) arg() {}

// ListArg is an ordered sequence of arguments, e.g. the tensor list
// passed to a concat operator. Structure and order are preserved by
// every transformation.
type ListArg []Arg

func (ListArg) arg() {}

// LiteralArg is a non-graph value (scalar, string, shape, ...).
// Transformations pass literals through unchanged.
type LiteralArg struct{ Value any }

func (LiteralArg) arg() {}

// NodeRef wraps a node as an argument.
func NodeRef(n *Node) Arg { return NodeArg{Node: n} }

// Literal wraps a plain value as an argument.
func Literal(v any) Arg { return LiteralArg{Value: v} }

// List builds a ListArg.
func List(args ...Arg) Arg { return ListArg(args) }

// Node is one vertex of a Graph.
//
// Nodes are created and owned by a Graph; all structural mutation goes
// through Graph/Node methods so the consumer index stays consistent.
type Node struct {
	graph  *Graph
	name   string
	op     OpKind
	target string
	args   []Arg
	kwargs map[string]Arg

	// users lists consumer nodes in first-use order. A consumer appears
	// once no matter how many of its arguments reference this node.
	// Slice order is the deterministic iteration order for consumer
	// scans (observer deduplication depends on it).
	users []*Node

	annotation *Annotation
	tensor     bool
}

// Name returns the node's unique name.
func (n *Node) Name() string { return n.name }

// Op returns the node's kind.
func (n *Node) Op() OpKind { return n.op }

// Target returns the operator name (OpCall) or bound observer instance
// ID (OpObserver). Empty for inputs and outputs.
func (n *Node) Target() string { return n.target }

// Args returns a copy of the positional argument list.
func (n *Node) Args() []Arg { return slices.Clone(n.args) }

// Kwargs returns a copy of the keyword arguments. Nil if none.
func (n *Node) Kwargs() map[string]Arg {
	if len(n.kwargs) == 0 {
		return nil
	}
	out := make(map[string]Arg, len(n.kwargs))
	for k, v := range n.kwargs {
		out[k] = v
	}
	return out
}

// KwargCount returns the number of keyword arguments.
func (n *Node) KwargCount() int { return len(n.kwargs) }

// SetKwarg sets a keyword argument. Node-valued kwargs update the
// consumer index like positional args.
func (n *Node) SetKwarg(key string, v Arg) {
	if n.kwargs == nil {
		n.kwargs = make(map[string]Arg, 1)
	}
	old := n.kwargs[key]
	n.kwargs[key] = v
	n.reindexAfterChange(old, v)
}

// Users returns a snapshot of the current consumers in first-use order.
// Callers that rewire edges while iterating must use this snapshot -
// rewiring changes the live consumer set.
func (n *Node) Users() []*Node { return slices.Clone(n.users) }

// Annotation returns the node's quantization annotation, or nil.
func (n *Node) Annotation() *Annotation { return n.annotation }

// SetAnnotation attaches a quantization annotation.
func (n *Node) SetAnnotation(a *Annotation) { n.annotation = a }

// TensorValued reports whether the node's computed value is a tensor.
// Non-tensor outputs are never observed.
func (n *Node) TensorValued() bool { return n.tensor }

// SetTensorValued marks whether the node produces a tensor value.
func (n *Node) SetTensorValued(v bool) { n.tensor = v }

// SetArgs replaces the positional argument list and reindexes consumers.
func (n *Node) SetArgs(args []Arg) {
	oldRefs := collectRefs(nil, ListArg(n.args))
	n.args = slices.Clone(args)
	newRefs := collectRefs(nil, ListArg(n.args))
	newRefs = appendKwargRefs(newRefs, n.kwargs)

	for _, ref := range oldRefs {
		if !slices.Contains(newRefs, ref) {
			ref.removeUser(n)
		}
	}
	for _, ref := range newRefs {
		ref.addUser(n)
	}
}

// ReplaceInputWith substitutes every argument occurrence of old with new,
// recursing into list arguments, and updates both consumer sets.
func (n *Node) ReplaceInputWith(old, new *Node) {
	for i, a := range n.args {
		n.args[i] = replaceInArg(a, old, new)
	}
	for k, a := range n.kwargs {
		n.kwargs[k] = replaceInArg(a, old, new)
	}

	stillRefs := collectRefs(nil, ListArg(n.args))
	stillRefs = appendKwargRefs(stillRefs, n.kwargs)
	if !slices.Contains(stillRefs, old) {
		old.removeUser(n)
	}
	if slices.Contains(stillRefs, new) {
		new.addUser(n)
	}
}

func replaceInArg(a Arg, old, new *Node) Arg {
	switch v := a.(type) {
	case NodeArg:
		if v.Node == old {
			return NodeArg{Node: new}
		}
		return v
	case ListArg:
		out := make(ListArg, len(v))
		for i, inner := range v {
			out[i] = replaceInArg(inner, old, new)
		}
		return out
	default:
		return a
	}
}

func (n *Node) addUser(u *Node) {
	if !slices.Contains(n.users, u) {
		n.users = append(n.users, u)
	}
}

func (n *Node) removeUser(u *Node) {
	if i := slices.Index(n.users, u); i >= 0 {
		n.users = slices.Delete(n.users, i, i+1)
	}
}

func (n *Node) reindexAfterChange(old, new Arg) {
	stillRefs := collectRefs(nil, ListArg(n.args))
	stillRefs = appendKwargRefs(stillRefs, n.kwargs)
	for _, ref := range collectRefs(nil, old) {
		if !slices.Contains(stillRefs, ref) {
			ref.removeUser(n)
		}
	}
	for _, ref := range collectRefs(nil, new) {
		ref.addUser(n)
	}
}

// collectRefs appends every node referenced by a (recursively) to dst,
// in first-reference order, without duplicates.
func collectRefs(dst []*Node, a Arg) []*Node {
	switch v := a.(type) {
	case nil:
		return dst
	case NodeArg:
		if v.Node != nil && !slices.Contains(dst, v.Node) {
			dst = append(dst, v.Node)
		}
		return dst
	case ListArg:
		for _, inner := range v {
			dst = collectRefs(dst, inner)
		}
		return dst
	default:
		return dst
	}
}

func appendKwargRefs(dst []*Node, kwargs map[string]Arg) []*Node {
	// Kwarg iteration order does not matter here: the result is only
	// membership-tested, never iterated for output.
	for _, a := range kwargs {
		dst = collectRefs(dst, a)
	}
	return dst
}

// Graph is a mutable computation graph with a stable creation order.
//
// INVARIANTS:
//   - Node names are unique within a graph.
//   - nodes slice order is creation/insertion order and is the canonical
//     iteration order for every pass (determinism depends on it).
//   - The consumer index (Node.users) is kept consistent by every
//     mutation primitive.
//
// Graph is not safe for concurrent mutation. The prepare pass assumes
// exclusive ownership for its duration.
type Graph struct {
	nodes  []*Node
	byName map[string]*Node

	// observers indexes bound instrumentation instances by ID.
	// See observer.go.
	observers map[string]*Observer
}

// NewGraph allocates an empty graph.
func NewGraph() *Graph {
	return &Graph{byName: make(map[string]*Node)}
}

// AddNode appends a node at the end of the creation order.
//
// Fails if the name is empty or already taken, or if an argument
// references a node from another graph.
func (g *Graph) AddNode(name string, op OpKind, target string, args ...Arg) (*Node, error) {
	return g.insertAt(len(g.nodes), name, op, target, args)
}

// MustAddNode is like AddNode but panics on error.
// Use only in tests or when inputs are known to be valid.
func (g *Graph) MustAddNode(name string, op OpKind, target string, args ...Arg) *Node {
	n, err := g.AddNode(name, op, target, args...)
	if err != nil {
		panic(err)
	}
	return n
}

// InsertAfter creates a node immediately after `after` in the node order.
// Used by the prepare pass to place observer nodes next to their source.
func (g *Graph) InsertAfter(after *Node, name string, op OpKind, target string, args ...Arg) (*Node, error) {
	idx := slices.Index(g.nodes, after)
	if idx < 0 {
		return nil, fmt.Errorf("insert after %q: node not in graph", after.name)
	}
	return g.insertAt(idx+1, name, op, target, args)
}

func (g *Graph) insertAt(idx int, name string, op OpKind, target string, args []Arg) (*Node, error) {
	if name == "" {
		return nil, fmt.Errorf("add node: empty name")
	}
	if _, exists := g.byName[name]; exists {
		return nil, fmt.Errorf("add node: duplicate name %q", name)
	}
	for _, ref := range collectRefs(nil, ListArg(args)) {
		if ref.graph != g {
			return nil, fmt.Errorf("add node %q: arg %q belongs to a different graph", name, ref.name)
		}
	}

	n := &Node{
		graph:  g,
		name:   name,
		op:     op,
		target: target,
		args:   slices.Clone(args),
	}
	g.nodes = slices.Insert(g.nodes, idx, n)
	g.byName[name] = n

	for _, ref := range collectRefs(nil, ListArg(n.args)) {
		ref.addUser(n)
	}
	return n, nil
}

// Node looks up a node by name. Nil if not found.
func (g *Graph) Node(name string) *Node { return g.byName[name] }

// Nodes returns a snapshot of the node list in creation/insertion order.
//
// Passes that mutate the graph while iterating MUST iterate this
// snapshot, not the live list - inserted nodes must never be processed
// by the pass that inserted them.
func (g *Graph) Nodes() []*Node { return slices.Clone(g.nodes) }

// Len returns the current node count.
func (g *Graph) Len() int { return len(g.nodes) }

// FreshName returns an unused node name with the given prefix,
// e.g. "obs_0", "obs_1", ...
func (g *Graph) FreshName(prefix string) string {
	for i := 0; ; i++ {
		name := fmt.Sprintf("%s_%d", prefix, i)
		if _, taken := g.byName[name]; !taken {
			return name
		}
	}
}
