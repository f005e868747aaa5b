package prepare

import (
	"slices"

	"github.com/quantprep/quantprep/internal/ir"
)

// Registry is the disjoint-set (union-find) over annotated positions.
//
// Every registered position starts as its own root. Find compresses
// paths as it resolves; Union is DIRECTIONAL - the parent side's root
// survives. Which value ends up as a group's representative depends on
// union order, and downstream spec resolution reads the surviving
// root's spec, so the direction is part of the contract, not an
// implementation detail.
//
// INVARIANTS:
//   - order slice holds registration order and NEVER changes after
//     construction; group-id assignment iterates it for determinism.
//   - parent contains exactly the registered positions; Find on
//     anything else is a fatal KEY_NOT_FOUND.
type Registry struct {
	parent map[ir.Position]ir.Position
	order  []ir.Position
}

// NewRegistry registers the given positions, each as its own root.
// The slice order is recorded as the registration order.
func NewRegistry(positions []ir.Position) *Registry {
	r := &Registry{
		parent: make(map[ir.Position]ir.Position, len(positions)),
		order:  slices.Clone(positions),
	}
	for _, p := range positions {
		r.parent[p] = p
	}
	return r
}

// Find resolves p to its current root, rewriting every visited
// position's parent to the root on the way back (path compression).
//
// Fails with KEY_NOT_FOUND if p was never registered.
func (r *Registry) Find(p ir.Position) (ir.Position, error) {
	parent, ok := r.parent[p]
	if !ok {
		return ir.Position{}, newKeyNotFoundError(p)
	}
	if parent == p {
		return p, nil
	}
	root, err := r.Find(parent)
	if err != nil {
		return ir.Position{}, err
	}
	// path compression
	r.parent[p] = root
	return root, nil
}

// Union merges child's tree into parent's: root(child) is re-parented
// to root(parent). Asymmetric on purpose - see the type comment.
func (r *Registry) Union(parent, child ir.Position) error {
	rootParent, err := r.Find(parent)
	if err != nil {
		return err
	}
	rootChild, err := r.Find(child)
	if err != nil {
		return err
	}
	r.parent[rootChild] = rootParent
	return nil
}

// Positions returns the registration order. Callers must not mutate it.
func (r *Registry) Positions() []ir.Position { return r.order }

// Len returns the number of registered positions.
func (r *Registry) Len() int { return len(r.parent) }
