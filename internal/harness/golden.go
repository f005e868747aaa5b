package harness

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/quantprep/quantprep/internal/ir"
)

// RunWithGolden runs a scenario and compares its canonical snapshot
// against the golden file named after the scenario.
func RunWithGolden(t *testing.T, scenario *Scenario) *Result {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		t.Fatalf("scenario %s failed to run: %v", scenario.Name, err)
	}
	for _, msg := range result.Errors {
		t.Errorf("scenario %s: %s", scenario.Name, msg)
	}
	if result.Report == nil {
		return result
	}

	data, err := snapshot(result)
	if err != nil {
		t.Fatalf("scenario %s: snapshot failed: %v", scenario.Name, err)
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return result
}

// snapshot serializes the result as canonical JSON. Keys sort and
// strings normalize, so the bytes are stable across runs and platforms.
func snapshot(result *Result) ([]byte, error) {
	rep := result.Report

	groups := make([]any, 0, len(rep.Groups))
	for _, ga := range rep.Groups {
		groups = append(groups, map[string]any{
			"position":    ga.Position.String(),
			"group":       ga.GroupID,
			"observer_id": ga.ObserverID,
		})
	}
	observers := make([]any, 0, len(rep.Observers))
	for _, ob := range rep.Observers {
		observers = append(observers, map[string]any{
			"group":   ob.GroupID,
			"id":      ob.ObserverID,
			"kind":    string(ob.Kind),
			"dtype":   string(ob.DType),
			"dynamic": ob.Dynamic,
		})
	}
	inserted := make([]any, 0, len(rep.Inserted))
	for _, in := range rep.Inserted {
		inserted = append(inserted, map[string]any{
			"observer_node": in.ObserverNode,
			"source":        in.Source,
			"observer_id":   in.ObserverID,
		})
	}

	data, err := ir.MarshalCanonical(map[string]any{
		"name":      result.Scenario.Name,
		"training":  rep.Training,
		"graph":     result.Dump,
		"groups":    groups,
		"observers": observers,
		"inserted":  inserted,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize snapshot: %w", err)
	}
	return data, nil
}
