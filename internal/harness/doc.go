// Package harness provides a conformance testing framework for the
// observer preparation pass.
//
// Scenarios are YAML files pairing a CUE graph document with the
// expected pass outcome: group counts, insertion order, and per-position
// group assignments. The harness compiles the graph, runs the pass with
// a sequential observer ID generator so output is fully deterministic,
// and evaluates the scenario's expectations.
//
// Golden files capture the canonical-JSON snapshot of a run (report
// plus the mutated graph dump) and serve as the source of truth for
// expected pass behavior. Regenerate them with:
//
//	go test ./internal/harness -update
package harness
