package prepare

import (
	"github.com/quantprep/quantprep/internal/ir"
)

// SpecMap records every annotated position and its spec.
//
// The iteration order is maintained as an explicit list besides the map
// (never a map's incidental order): nodes in graph creation order, and
// within a node its input edges in declaration order followed by its
// output position. This registration order drives every downstream
// determinism guarantee - sharing resolution, group ids, and which
// position's local spec parameterizes a group's observer.
type SpecMap struct {
	order []ir.Position
	specs map[ir.Position]ir.Spec
}

// CollectSpecs walks the graph's annotations into a SpecMap.
func CollectSpecs(g *ir.Graph) *SpecMap {
	sm := &SpecMap{specs: make(map[ir.Position]ir.Spec)}
	for _, n := range g.Nodes() {
		ann := n.Annotation()
		if ann == nil {
			continue
		}
		for _, in := range ann.Inputs {
			sm.add(ir.InputEdge(in.Producer, n.Name()), in.Spec)
		}
		if ann.Output != nil {
			sm.add(ir.NodeOutput(n.Name()), ann.Output)
		}
	}
	return sm
}

func (sm *SpecMap) add(pos ir.Position, spec ir.Spec) {
	if _, seen := sm.specs[pos]; !seen {
		sm.order = append(sm.order, pos)
	}
	sm.specs[pos] = spec
}

// Get returns the spec annotated at pos, if any.
func (sm *SpecMap) Get(pos ir.Position) (ir.Spec, bool) {
	s, ok := sm.specs[pos]
	return s, ok
}

// Positions returns the registration order. Callers must not mutate it.
func (sm *SpecMap) Positions() []ir.Position { return sm.order }

// Len returns the number of annotated positions.
func (sm *SpecMap) Len() int { return len(sm.order) }
