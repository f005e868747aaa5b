package ir

// Annotation attaches quantization intent to one node. Produced by the
// compiler front-end (or a quantizer); the prepare pass only reads it.
type Annotation struct {
	// Inputs annotates input edges of this node, in declaration order.
	//
	// CRITICAL: this is an ordered slice, not a map. The order input
	// specs are declared in becomes part of the pass's registration
	// order, which drives group-id assignment determinism.
	Inputs []InputSpec

	// Output annotates this node's output value. Nil if unannotated.
	Output Spec
}

// InputSpec annotates the edge (Producer -> annotated node).
type InputSpec struct {
	Producer string
	Spec     Spec
}

// Clone returns a deep-enough copy: the Inputs slice is copied so callers
// can append without aliasing. Spec values are immutable and shared.
func (a *Annotation) Clone() *Annotation {
	if a == nil {
		return nil
	}
	out := &Annotation{Output: a.Output}
	if len(a.Inputs) > 0 {
		out.Inputs = make([]InputSpec, len(a.Inputs))
		copy(out.Inputs, a.Inputs)
	}
	return out
}
