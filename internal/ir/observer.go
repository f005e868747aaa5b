package ir

// ObserverKind names the instrumentation module type bound at a position.
type ObserverKind string

const (
	// KindMinMax is a static range observer (eval-mode preparation).
	KindMinMax ObserverKind = "minmax"

	// KindFakeQuant simulates quantization during training.
	KindFakeQuant ObserverKind = "fake_quant"

	// KindPlaceholder is a pass-through recorder used for dynamic
	// quantization, where ranges are computed at runtime.
	KindPlaceholder ObserverKind = "placeholder"
)

// Observer is one shared instrumentation instance. Every position in a
// sharing group binds the same *Observer; observer graph nodes reference
// it by ID via their Target.
type Observer struct {
	// ID uniquely identifies the instance. Time-sortable UUIDv7 in
	// production, fixed tokens in tests.
	ID string

	Kind    ObserverKind
	DType   DType
	Dynamic bool
}

// EquivalentTo reports structural equivalence: same kind, dtype, and
// dynamic-ness. IDs are deliberately excluded so that observers from a
// previous preparation run compare equal to their re-derived
// counterparts.
func (o *Observer) EquivalentTo(other *Observer) bool {
	if o == nil || other == nil {
		return o == other
	}
	return o.Kind == other.Kind && o.DType == other.DType && o.Dynamic == other.Dynamic
}

// BindObserver registers an observer instance on the graph so observer
// nodes can resolve their Target back to the instance. Idempotent for
// the same ID.
func (g *Graph) BindObserver(o *Observer) {
	if g.observers == nil {
		g.observers = make(map[string]*Observer)
	}
	g.observers[o.ID] = o
}

// Observer resolves a bound instance by ID. Nil if unknown.
func (g *Graph) Observer(id string) *Observer {
	return g.observers[id]
}

// Observers returns the number of bound observer instances.
func (g *Graph) Observers() int { return len(g.observers) }
