package prepare

import (
	"github.com/quantprep/quantprep/internal/ir"
)

// Report summarizes one preparation run. It is the unit persisted by
// the provenance store and printed by the CLI.
type Report struct {
	// RunID is content-addressed over graph hash, mode, and tool version.
	RunID string

	// GraphHash identifies the pre-mutation graph structure.
	GraphHash string

	// Training records whether fake-quant (training) observers were used.
	Training bool

	NodesBefore int
	NodesAfter  int

	// Groups lists every annotated position with its group id and bound
	// observer, in registration order.
	Groups []GroupAssignment

	// Observers lists the distinct instances, one per group that
	// materialized, ordered by group id.
	Observers []ObserverRecord

	// Inserted lists observer nodes added to the graph, in insertion order.
	Inserted []Insertion
}

// GroupAssignment records the group resolution for one position.
type GroupAssignment struct {
	Position   ir.Position
	GroupID    int
	ObserverID string
}

// ObserverRecord describes one materialized instance.
type ObserverRecord struct {
	GroupID    int
	ObserverID string
	Kind       ir.ObserverKind
	DType      ir.DType
	Dynamic    bool
}

// Insertion records one observer node added by the mutator.
type Insertion struct {
	// ObserverNode is the inserted node's name.
	ObserverNode string

	// Source is the node whose value the observer consumes.
	Source string

	ObserverID string
}

// GroupID returns the group assigned to pos during this run.
func (r *Report) GroupID(pos ir.Position) (int, bool) {
	for _, ga := range r.Groups {
		if ga.Position == pos {
			return ga.GroupID, true
		}
	}
	return 0, false
}

// GroupCount returns the number of distinct groups.
func (r *Report) GroupCount() int {
	seen := make(map[int]bool)
	for _, ga := range r.Groups {
		seen[ga.GroupID] = true
	}
	return len(seen)
}
