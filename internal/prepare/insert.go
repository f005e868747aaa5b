package prepare

import (
	"log/slog"

	"github.com/quantprep/quantprep/internal/ir"
)

// CloneTarget is the one operator exempt from the no-kwargs invariant:
// its persistent memory-format keyword argument survives into prepared
// graphs, so mutation must tolerate it.
const CloneTarget = "aten.clone"

// mutator inserts observer nodes into the graph and rewires consumers.
// One mutator serves exactly one run; it is not reusable.
type mutator struct {
	g        *ir.Graph
	obs      map[ir.Position]*ir.Observer
	inserted []Insertion
}

// run processes every node of the pre-mutation snapshot in creation
// order. Input-side processing for a node completes before output-side
// processing, and inserted observer nodes are never themselves
// processed (they are not in the snapshot).
func (m *mutator) run() error {
	for _, n := range m.g.Nodes() {
		if err := m.processNode(n); err != nil {
			return err
		}
	}
	return nil
}

func (m *mutator) processNode(n *ir.Node) error {
	if n.Annotation() == nil {
		return nil
	}
	if err := m.observeInputs(n); err != nil {
		return err
	}
	// Non-tensor outputs are never observed.
	if !n.TensorValued() {
		return nil
	}
	return m.observeOutput(n)
}

// observeInputs rewrites n's positional arguments, inserting or reusing
// input observers where the edge's target observation differs from the
// argument's own output observation.
func (m *mutator) observeInputs(n *ir.Node) error {
	args := n.Args()
	newArgs := make([]ir.Arg, len(args))
	for i, a := range args {
		na, err := m.observeArg(n, a)
		if err != nil {
			return err
		}
		newArgs[i] = na
	}

	// Kwargs must be gone by this stage; the clone operator's persistent
	// memory-format kwarg is the single carve-out.
	if n.Target() != CloneTarget && n.KwargCount() > 0 {
		return newUnexpectedKwargsError(n.Name(), n.KwargCount())
	}

	n.SetArgs(newArgs)
	return nil
}

// observeArg processes a single argument of n, recursing position-wise
// into list arguments and passing non-graph values through unchanged.
func (m *mutator) observeArg(n *ir.Node, a ir.Arg) (ir.Arg, error) {
	switch v := a.(type) {
	case ir.ListArg:
		out := make(ir.ListArg, len(v))
		for i, inner := range v {
			na, err := m.observeArg(n, inner)
			if err != nil {
				return nil, err
			}
			out[i] = na
		}
		return out, nil

	case ir.NodeArg:
		return m.observeNodeArg(n, v.Node)

	default:
		return a, nil
	}
}

func (m *mutator) observeNodeArg(n *ir.Node, argNode *ir.Node) (ir.Arg, error) {
	// Resolve through any observer chain to the true source: annotation
	// edges always name the original producer, not inserted observers.
	src, err := m.resolveSource(argNode, n)
	if err != nil {
		return nil, err
	}
	edge := ir.InputEdge(src.Name(), n.Name())

	inObs := m.obs[edge]
	inDType, inDyn := observationTarget(inObs)

	outObs := m.outputObserverOf(argNode)
	outDType, outDyn := observationTarget(outObs)

	// No observation wanted on this edge: float or unannotated target.
	if !inDyn && (inDType == ir.DTypeUnset || inDType == ir.DTypeFloat32) {
		return ir.NodeRef(argNode), nil
	}

	if inDType == outDType && inDyn == outDyn {
		// The argument is already observed identically upstream; reuse
		// its observed value instead of stacking a second observer.
		if argNode.Op() != ir.OpObserver {
			return nil, newMissingGroupError(edge,
				"argument matching its own output observation is not an observer node")
		}
		if _, bound := m.obs[ir.NodeOutput(src.Name())]; !bound {
			return nil, newMissingGroupError(edge,
				"no sharing group bound for the observed source node")
		}
		return ir.NodeRef(argNode), nil
	}

	// A previous run may already have placed this edge's observer: the
	// argument itself is an observer equivalent to the edge's instance.
	// Nothing to insert in that case.
	if argNode.Op() == ir.OpObserver {
		if existing := m.g.Observer(argNode.Target()); existing.EquivalentTo(inObs) {
			return ir.NodeRef(argNode), nil
		}
	}

	// The edge wants a different observation than the argument's output
	// carries. Before inserting, scan the argument's consumers for an
	// observer of the same kind and dtype:
	//
	//	arg -> existing_obs -> conv1
	//	   \ -> conv2
	//
	// becomes
	//
	//	arg -> existing_obs -> conv1
	//	                  \ -> conv2
	for _, u := range argNode.Users() {
		if u.Op() != ir.OpObserver {
			continue
		}
		existing := m.g.Observer(u.Target())
		if existing == nil || existing.Kind != inObs.Kind || existing.DType != inDType {
			continue
		}
		// Deduplication must still respect group identity: the reused
		// node's instance has to be equivalent to this edge's group
		// instance, otherwise sharing inference went wrong somewhere.
		if !existing.EquivalentTo(inObs) {
			return nil, newGroupInstanceMismatchError(edge, u.Name(), inObs, existing)
		}
		slog.Debug("reusing existing observer node",
			"edge", edge.String(),
			"observer_node", u.Name(),
			"observer_id", existing.ID,
		)
		return ir.NodeRef(u), nil
	}

	// Insert a fresh observer on the observed value. The instance comes
	// from the true source edge, since that is the edge the annotation
	// producer referred to.
	inst := m.obs[edge]
	if inst == nil {
		return nil, newMissingGroupError(edge, "no bound instance for resolved source edge")
	}
	obsNode, err := m.insertObserver(argNode, inst)
	if err != nil {
		return nil, err
	}
	return ir.NodeRef(obsNode), nil
}

// observeOutput inserts n's output observer and rewires every original
// consumer through it.
func (m *mutator) observeOutput(n *ir.Node) error {
	inst := m.obs[ir.NodeOutput(n.Name())]
	if inst == nil {
		return nil
	}

	// A node already carrying an equivalent observer consumer is never
	// instrumented twice for the same role - this makes a repeated run
	// over an already-prepared graph a no-op.
	for _, u := range n.Users() {
		if u.Op() == ir.OpObserver && m.g.Observer(u.Target()).EquivalentTo(inst) {
			slog.Debug("output already observed, skipping",
				"node", n.Name(),
				"observer_node", u.Name(),
			)
			return nil
		}
	}

	obsNode, err := m.insertObserver(n, inst)
	if err != nil {
		return err
	}

	// Snapshot consumers before rewiring - rewiring mutates the set.
	users := n.Users()
	for _, u := range users {
		if u == obsNode {
			continue
		}
		u.ReplaceInputWith(n, obsNode)
	}
	return nil
}

// insertObserver places a new observer node for inst immediately after
// src, consuming src's value, and records the insertion.
func (m *mutator) insertObserver(src *ir.Node, inst *ir.Observer) (*ir.Node, error) {
	name := m.g.FreshName("obs")
	obsNode, err := m.g.InsertAfter(src, name, ir.OpObserver, inst.ID, ir.NodeRef(src))
	if err != nil {
		return nil, err
	}
	obsNode.SetTensorValued(true)
	m.g.BindObserver(inst)

	m.inserted = append(m.inserted, Insertion{
		ObserverNode: name,
		Source:       src.Name(),
		ObserverID:   inst.ID,
	})
	slog.Debug("observer inserted",
		"observer_node", name,
		"source", src.Name(),
		"observer_id", inst.ID,
		"kind", string(inst.Kind),
		"dtype", string(inst.DType),
	)
	return obsNode, nil
}

// resolveSource walks backward through observer nodes to the original
// producer of the value flowing into consumer.
func (m *mutator) resolveSource(argNode *ir.Node, consumer *ir.Node) (*ir.Node, error) {
	src := argNode
	for src.Op() == ir.OpObserver {
		args := src.Args()
		if len(args) == 0 {
			return nil, newMissingGroupError(ir.InputEdge(argNode.Name(), consumer.Name()),
				"observer node has no observed argument")
		}
		na, ok := args[0].(ir.NodeArg)
		if !ok {
			return nil, newMissingGroupError(ir.InputEdge(argNode.Name(), consumer.Name()),
				"observed argument is not a graph node")
		}
		src = na.Node
	}
	return src, nil
}

// outputObserverOf returns the instance observing argNode's output
// value, looking through an observer node to the value it observes.
func (m *mutator) outputObserverOf(argNode *ir.Node) *ir.Observer {
	if argNode.Op() == ir.OpObserver {
		args := argNode.Args()
		if len(args) == 0 {
			return nil
		}
		na, ok := args[0].(ir.NodeArg)
		if !ok {
			return nil
		}
		return m.obs[ir.NodeOutput(na.Node.Name())]
	}
	return m.obs[ir.NodeOutput(argNode.Name())]
}

// observationTarget extracts the (dtype, dynamic) target from a bound
// instance; an unbound position targets nothing.
func observationTarget(o *ir.Observer) (ir.DType, bool) {
	if o == nil {
		return ir.DTypeUnset, false
	}
	return o.DType, o.Dynamic
}
