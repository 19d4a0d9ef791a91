package harness

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/kimconv/internal/record"
)

// Snapshot renders a scenario result as canonical JSON: the archive plus
// the ordered issue kinds. The output ends with a newline.
func Snapshot(name string, result *Result) ([]byte, error) {
	data, err := json.Marshal(result.Archive)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", name, err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", name, err)
	}

	kinds := make([]any, 0, len(result.Issues))
	for _, k := range result.IssueKinds() {
		kinds = append(kinds, k)
	}

	out, err := record.MarshalCanonical(map[string]any{
		"scenario":    name,
		"archive":     doc,
		"issue_kinds": kinds,
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", name, err)
	}
	return append(out, '\n'), nil
}

// RunWithGolden runs a scenario, fails t on unmet expectations, and compares
// the snapshot against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Errorf("%s: %s", scenario.Name, msg)
	}

	snapshot, err := Snapshot(scenario.Name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, snapshot)
	return nil
}
