package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/kimconv/internal/record"
)

// Scenario is a conversion test case: input records plus the expected
// shape of the resulting archive.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Options override converter defaults.
	Options ScenarioOptions `yaml:"options,omitempty"`

	// Records are the flat input records, in order.
	Records []map[string]any `yaml:"records"`

	// Expect holds section counts. Unset counts are not checked.
	Expect Expect `yaml:"expect"`

	// Assertions validate details of the converted archive.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ScenarioOptions are the converter settings a scenario may change.
type ScenarioOptions struct {
	Workers    int    `yaml:"workers,omitempty"`
	LengthUnit string `yaml:"length_unit,omitempty"`
}

// Expect lists expected archive section counts.
type Expect struct {
	Runs         *int `yaml:"runs,omitempty"`
	Systems      *int `yaml:"systems,omitempty"`
	Calculations *int `yaml:"calculations,omitempty"`
	Workflows    *int `yaml:"workflows,omitempty"`
	Extensions   *int `yaml:"extensions,omitempty"`
	Issues       *int `yaml:"issues,omitempty"`
}

// Assertion validates one detail of a converted archive.
type Assertion struct {
	// Type selects the check:
	// - "workflow_types": workflow types in order equal Types
	// - "issue_kinds": issue kinds in order equal Kinds
	// - "extension_present": run Run carries extension Name
	// - "extension_absent": run Run does not carry extension Name
	// - "labels": system System of run Run has labels Labels
	Type string `yaml:"type"`

	Types  []string `yaml:"types,omitempty"`
	Kinds  []string `yaml:"kinds,omitempty"`
	Run    int      `yaml:"run,omitempty"`
	System int      `yaml:"system,omitempty"`
	Name   string   `yaml:"name,omitempty"`
	Labels []string `yaml:"labels,omitempty"`
}

// Assertion type constants.
const (
	AssertWorkflowTypes    = "workflow_types"
	AssertIssueKinds       = "issue_kinds"
	AssertExtensionPresent = "extension_present"
	AssertExtensionAbsent  = "extension_absent"
	AssertLabels           = "labels"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so that typos surface as errors.
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

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScenarios loads every *.yaml scenario in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	seen := make(map[string]string)
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		if prev, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("%s: scenario name %q already used by %s", filepath.Base(path), s.Name, prev)
		}
		seen[s.Name] = filepath.Base(path)
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// InputRecords converts the YAML records to decoded JSON records.
//
// YAML integers decode as int; the JSON round trip turns every number into
// float64, exactly as a records file would.
func (s *Scenario) InputRecords() ([]record.Record, error) {
	data, err := json.Marshal(s.Records)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: encode records: %w", s.Name, err)
	}
	return record.DecodeRecords(data)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Records == nil {
		return fmt.Errorf("records list is required (use [] for no records)")
	}

	if s.Options.Workers < 0 {
		return fmt.Errorf("options.workers must be non-negative")
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertWorkflowTypes, AssertIssueKinds:
	case AssertExtensionPresent, AssertExtensionAbsent:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for %s", index, a.Type)
		}
	case AssertLabels:
		if len(a.Labels) == 0 {
			return fmt.Errorf("assertions[%d]: labels list is required for labels", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
