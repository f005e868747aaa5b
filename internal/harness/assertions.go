package harness

import (
	"fmt"

	"github.com/quantprep/quantprep/internal/ir"
	"github.com/quantprep/quantprep/internal/prepare"
)

// EvaluateExpectations checks a pass report against a scenario's
// expectations and returns one message per failed check.
func EvaluateExpectations(rep *prepare.Report, exp Expectations) []string {
	var failures []string

	if exp.Groups != nil && rep.GroupCount() != *exp.Groups {
		failures = append(failures,
			fmt.Sprintf("expected %d groups, got %d", *exp.Groups, rep.GroupCount()))
	}
	if exp.Insertions != nil && len(rep.Inserted) != *exp.Insertions {
		failures = append(failures,
			fmt.Sprintf("expected %d insertions, got %d", *exp.Insertions, len(rep.Inserted)))
	}
	if exp.NodesAfter != nil && rep.NodesAfter != *exp.NodesAfter {
		failures = append(failures,
			fmt.Sprintf("expected %d nodes after preparation, got %d", *exp.NodesAfter, rep.NodesAfter))
	}

	if exp.Sources != nil {
		sources := make([]string, 0, len(rep.Inserted))
		for _, in := range rep.Inserted {
			sources = append(sources, in.Source)
		}
		if !equalStrings(sources, exp.Sources) {
			failures = append(failures,
				fmt.Sprintf("expected insertion sources %v, got %v", exp.Sources, sources))
		}
	}

	for _, pe := range exp.Positions {
		pos, err := ir.ParsePosition(pe.Position)
		if err != nil {
			failures = append(failures,
				fmt.Sprintf("bad position expectation %q: %v", pe.Position, err))
			continue
		}
		gid, ok := rep.GroupID(pos)
		if !ok {
			failures = append(failures,
				fmt.Sprintf("position %s was not grouped", pe.Position))
			continue
		}
		if gid != pe.Group {
			failures = append(failures,
				fmt.Sprintf("position %s: expected group %d, got %d", pe.Position, pe.Group, gid))
		}
	}
	return failures
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
