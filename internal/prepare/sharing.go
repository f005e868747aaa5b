package prepare

import (
	"log/slog"

	"github.com/quantprep/quantprep/internal/ir"
)

// DefaultMaxSpecDepth bounds shared-with resolution. Annotation
// producers guarantee acyclic sharing references; the bound turns a
// violated guarantee into a CYCLIC_SHARING_SPEC error instead of stack
// exhaustion.
const DefaultMaxSpecDepth = 256

// BuildSharing turns the annotations in sm into union-find relations.
//
// Positions are processed in registration order. Two rules apply:
//
//  1. Explicit: a shared-with spec on position p referencing q unions
//     with parent=q, child=p - the referenced position's root survives.
//
//  2. Implicit adjacency: for an edge (arg -> n), if the edge's root
//     spec and the root spec of arg's own output annotation both
//     resolve and agree on dtype AND dynamic-ness, the edge shares
//     arg's output observer (parent=arg's output, child=edge): they
//     denote the same runtime tensor observed identically.
//
// Absence of dtype or dynamic-ness on either side makes the specs
// unequal - never silently equal.
func BuildSharing(sm *SpecMap, maxDepth int) (*Registry, error) {
	reg := NewRegistry(sm.Positions())

	for _, pos := range sm.Positions() {
		spec, _ := sm.Get(pos)

		if !pos.IsEdge() {
			if err := unionSharedWith(reg, pos, spec); err != nil {
				return nil, err
			}
			continue
		}

		edgeRoot, err := reg.Find(pos)
		if err != nil {
			return nil, err
		}
		edgeRootSpec, ok := sm.Get(edgeRoot)
		if !ok {
			return nil, newKeyNotFoundError(edgeRoot)
		}
		edgeSpec, err := resolveRootSpec(edgeRootSpec, sm, reg, pos, maxDepth)
		if err != nil {
			return nil, err
		}

		argPos := ir.NodeOutput(pos.Producer)
		if argAnnotated, ok := sm.Get(argPos); ok {
			argSpec, err := resolveRootSpec(argAnnotated, sm, reg, argPos, maxDepth)
			if err != nil {
				return nil, err
			}
			if sameDType(argSpec, edgeSpec) && sameDynamic(argSpec, edgeSpec) {
				// The producer's output and this edge carry the same
				// tensor with identical observation targets: share.
				slog.Debug("implicit adjacency union",
					"parent", argPos.String(),
					"child", pos.String(),
					"dtype", string(argSpec.DType),
				)
				if err := reg.Union(argPos, pos); err != nil {
					return nil, err
				}
			}
		}

		if err := unionSharedWith(reg, pos, spec); err != nil {
			return nil, err
		}
	}

	return reg, nil
}

// unionSharedWith applies an explicit shared-with spec: pos points to
// the position it shares with, so the referenced side is the parent.
func unionSharedWith(reg *Registry, pos ir.Position, spec ir.Spec) error {
	shared, ok := spec.(ir.SharedWith)
	if !ok {
		return nil
	}
	slog.Debug("shared-with union",
		"parent", shared.Target.String(),
		"child", pos.String(),
	)
	return reg.Union(shared.Target, pos)
}

// resolveRootSpec unwraps shared-with references until a concrete spec
// is found: resolve the referenced position's current root, read the
// root's spec, repeat. The depth bound guards against cyclic inputs;
// start names the position resolution began at, for error reporting.
func resolveRootSpec(spec ir.Spec, sm *SpecMap, reg *Registry, start ir.Position, maxDepth int) (ir.QuantSpec, error) {
	for depth := 0; ; depth++ {
		if depth > maxDepth {
			return ir.QuantSpec{}, newCyclicSharingSpecError(start, maxDepth)
		}
		switch s := spec.(type) {
		case ir.QuantSpec:
			return s, nil
		case ir.SharedWith:
			root, err := reg.Find(s.Target)
			if err != nil {
				return ir.QuantSpec{}, err
			}
			rootSpec, ok := sm.Get(root)
			if !ok {
				return ir.QuantSpec{}, newKeyNotFoundError(root)
			}
			spec = rootSpec
		default:
			// nil or unknown spec variants cannot appear in a SpecMap.
			return ir.QuantSpec{}, newKeyNotFoundError(start)
		}
	}
}

// sameDType reports dtype agreement. An unset dtype on either side is
// never equal to anything.
func sameDType(a, b ir.QuantSpec) bool {
	return a.DType != ir.DTypeUnset && b.DType != ir.DTypeUnset && a.DType == b.DType
}

// sameDynamic reports dynamic-ness agreement. An absent flag on either
// side is never equal to anything.
func sameDynamic(a, b ir.QuantSpec) bool {
	return a.IsDynamic != nil && b.IsDynamic != nil && *a.IsDynamic == *b.IsDynamic
}
