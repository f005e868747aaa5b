package prepare

import (
	"github.com/quantprep/quantprep/internal/ir"
)

// Groups is the resolved mapping from position to dense group id.
// Ids are zero-based, assigned in the order roots are first discovered
// while iterating registration order. Stable only within one run.
type Groups struct {
	byPosition map[ir.Position]int
	count      int
}

// AssignGroups resolves the registry into group ids.
//
// Iteration follows the registry's registration order exactly: given a
// deterministic registration order, the position -> id mapping is fully
// deterministic.
func AssignGroups(reg *Registry) (*Groups, error) {
	g := &Groups{byPosition: make(map[ir.Position]int, reg.Len())}
	rootIDs := make(map[ir.Position]int)

	for _, pos := range reg.Positions() {
		root, err := reg.Find(pos)
		if err != nil {
			return nil, err
		}
		id, seen := rootIDs[root]
		if !seen {
			id = g.count
			rootIDs[root] = id
			g.count++
		}
		g.byPosition[pos] = id
	}
	return g, nil
}

// ID returns the group id assigned to pos.
func (g *Groups) ID(pos ir.Position) (int, bool) {
	id, ok := g.byPosition[pos]
	return id, ok
}

// Count returns the number of distinct groups.
func (g *Groups) Count() int { return g.count }
