package harness

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/roach88/kimconv/internal/archive"
	"github.com/roach88/kimconv/internal/convert"
)

// Result is the outcome of running one scenario.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Errors lists the failed expectations.
	Errors []string `json:"errors,omitempty"`

	Archive *archive.Archive `json:"-"`
	Issues  []*convert.Error `json:"-"`
}

// AddError records a failed expectation.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// IssueKinds returns the kinds of the recovered conversion failures, in order.
func (r *Result) IssueKinds() []string {
	kinds := make([]string, len(r.Issues))
	for i, issue := range r.Issues {
		kinds[i] = string(issue.Kind)
	}
	return kinds
}

// Run converts the scenario's records and evaluates its expectations.
// An error is returned only when the scenario itself cannot be executed.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, zap.NewNop())
}

// RunWithLogger is Run with conversion diagnostics sent to logger.
func RunWithLogger(scenario *Scenario, logger *zap.Logger) (*Result, error) {
	records, err := scenario.InputRecords()
	if err != nil {
		return nil, err
	}

	opts := convert.DefaultOptions()
	if scenario.Options.Workers > 0 {
		opts.Workers = scenario.Options.Workers
	}
	if scenario.Options.LengthUnit != "" {
		opts.LengthUnit = scenario.Options.LengthUnit
	}

	conv, err := convert.New(opts, convert.WithLogger(logger)).Run(context.Background(), records)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	result := &Result{Pass: true, Archive: conv.Archive, Issues: conv.Issues}
	checkCounts(result, scenario.Expect)
	for _, a := range scenario.Assertions {
		evaluateAssertion(result, a)
	}
	return result, nil
}

func checkCounts(r *Result, want Expect) {
	got := r.Archive.Count()
	checks := []struct {
		name string
		want *int
		got  int
	}{
		{"runs", want.Runs, got.Runs},
		{"systems", want.Systems, got.Systems},
		{"calculations", want.Calculations, got.Calculations},
		{"workflows", want.Workflows, got.Workflows},
		{"extensions", want.Extensions, got.Extensions},
		{"issues", want.Issues, len(r.Issues)},
	}
	for _, c := range checks {
		if c.want != nil && *c.want != c.got {
			r.AddError("expect.%s: want %d, got %d", c.name, *c.want, c.got)
		}
	}
}

func evaluateAssertion(r *Result, a Assertion) {
	switch a.Type {
	case AssertWorkflowTypes:
		got := make([]string, len(r.Archive.Workflow))
		for i, wf := range r.Archive.Workflow {
			got[i] = wf.Type
		}
		if !slices.Equal(got, a.Types) && (len(got) > 0 || len(a.Types) > 0) {
			r.AddError("%s: want %v, got %v", a.Type, a.Types, got)
		}

	case AssertIssueKinds:
		got := r.IssueKinds()
		if !slices.Equal(got, a.Kinds) && (len(got) > 0 || len(a.Kinds) > 0) {
			r.AddError("%s: want %v, got %v", a.Type, a.Kinds, got)
		}

	case AssertExtensionPresent, AssertExtensionAbsent:
		run, ok := runAt(r, a)
		if !ok {
			return
		}
		_, present := run.Extensions[a.Name]
		if present != (a.Type == AssertExtensionPresent) {
			r.AddError("%s: run %d extension %q present=%t", a.Type, a.Run, a.Name, present)
		}

	case AssertLabels:
		run, ok := runAt(r, a)
		if !ok {
			return
		}
		if a.System < 0 || a.System >= len(run.System) {
			r.AddError("%s: run %d has no system %d", a.Type, a.Run, a.System)
			return
		}
		if got := run.System[a.System].Atoms.Labels; !slices.Equal(got, a.Labels) {
			r.AddError("%s: want %v, got %v", a.Type, a.Labels, got)
		}
	}
}

func runAt(r *Result, a Assertion) (*archive.Run, bool) {
	if a.Run < 0 || a.Run >= len(r.Archive.Run) {
		r.AddError("%s: archive has no run %d", a.Type, a.Run)
		return nil, false
	}
	return r.Archive.Run[a.Run], true
}
