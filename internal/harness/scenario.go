package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines one conformance scenario: a graph document plus the
// expected outcome of preparing it.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Graph is the path to the CUE graph document, relative to the
	// scenario file's directory.
	Graph string `yaml:"graph"`

	// Training selects training-mode preparation.
	Training bool `yaml:"training,omitempty"`

	// Expect lists outcome expectations. All are optional; absent
	// fields are not checked.
	Expect Expectations `yaml:"expect,omitempty"`
}

// Expectations validate the pass report. Counts use pointers so that an
// explicit zero is distinguishable from "not checked".
type Expectations struct {
	// Groups is the expected number of distinct sharing groups.
	Groups *int `yaml:"groups,omitempty"`

	// Insertions is the expected number of inserted observer nodes.
	Insertions *int `yaml:"insertions,omitempty"`

	// NodesAfter is the expected post-mutation node count.
	NodesAfter *int `yaml:"nodes_after,omitempty"`

	// Sources is the expected insertion order, by observed node name.
	Sources []string `yaml:"sources,omitempty"`

	// Positions pins individual positions to group ids.
	Positions []PositionExpectation `yaml:"positions,omitempty"`
}

// PositionExpectation pins one annotated position to a group.
type PositionExpectation struct {
	// Position in its text form: "node:op1" or "edge:op1->cat1".
	Position string `yaml:"position"`

	// Group is the expected zero-based group id.
	Group int `yaml:"group"`
}

// LoadScenario reads and parses a scenario YAML file. The graph path is
// resolved relative to the scenario file's directory. Unknown fields
// are rejected to catch typos.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Graph != "" && !filepath.IsAbs(scenario.Graph) {
		scenario.Graph = filepath.Join(filepath.Dir(path), scenario.Graph)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Graph == "" {
		return fmt.Errorf("graph is required")
	}
	if _, err := os.Stat(s.Graph); os.IsNotExist(err) {
		return fmt.Errorf("graph file not found: %s", s.Graph)
	}

	for i, pe := range s.Expect.Positions {
		if pe.Position == "" {
			return fmt.Errorf("expect.positions[%d]: position is required", i)
		}
		if pe.Group < 0 {
			return fmt.Errorf("expect.positions[%d]: group must be non-negative", i)
		}
	}
	for name, count := range map[string]*int{
		"groups":      s.Expect.Groups,
		"insertions":  s.Expect.Insertions,
		"nodes_after": s.Expect.NodesAfter,
	} {
		if count != nil && *count < 0 {
			return fmt.Errorf("expect.%s must be non-negative", name)
		}
	}
	return nil
}
