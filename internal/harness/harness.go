package harness

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/quantprep/quantprep/internal/compiler"
	"github.com/quantprep/quantprep/internal/ir"
	"github.com/quantprep/quantprep/internal/prepare"
)

// Result captures the outcome of running one scenario.
type Result struct {
	// Scenario is the scenario that was run.
	Scenario *Scenario

	// Pass is true when the graph compiled, the pass succeeded, and
	// every expectation held.
	Pass bool

	// Errors lists expectation failures and pass errors.
	Errors []string

	// Report is the pass report, nil when the pass did not run.
	Report *prepare.Report

	// Dump is the post-mutation graph in text form.
	Dump string
}

// AddError records a failure and marks the result failed.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// sequentialGenerator hands out "obs-0", "obs-1", ... so that harness
// output is stable across runs without a predeclared ID list.
type sequentialGenerator struct {
	next int
}

func (g *sequentialGenerator) Generate() string {
	id := fmt.Sprintf("obs-%d", g.next)
	g.next++
	return id
}

// Run executes one scenario: compile the graph document, run the
// preparation pass, and evaluate the scenario's expectations.
func Run(scenario *Scenario) (*Result, error) {
	result := &Result{Scenario: scenario, Pass: true}

	g, err := loadGraph(scenario.Graph)
	if err != nil {
		return nil, err
	}
	if verrs := compiler.Validate(g); len(verrs) > 0 {
		return nil, fmt.Errorf("graph %s is invalid: %s", scenario.Graph, verrs[0].Error())
	}

	rep, err := prepare.Run(g,
		prepare.WithTraining(scenario.Training),
		prepare.WithObserverIDs(&sequentialGenerator{}),
	)
	if err != nil {
		result.AddError("preparation pass failed: %v", err)
		return result, nil
	}
	result.Report = rep
	result.Dump = ir.Dump(g)

	for _, msg := range EvaluateExpectations(rep, scenario.Expect) {
		result.AddError("%s", msg)
	}
	return result, nil
}

// loadGraph compiles a single CUE file and extracts its graph document.
func loadGraph(path string) (*ir.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph file: %w", err)
	}

	ctx := cuecontext.New()
	v := ctx.CompileString(string(data), cue.Filename(path))
	if v.Err() != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", path, v.Err())
	}
	graphVal := v.LookupPath(cue.ParsePath("graph"))
	if !graphVal.Exists() {
		return nil, fmt.Errorf("no graph document in %s", path)
	}
	return compiler.CompileGraph(graphVal)
}
