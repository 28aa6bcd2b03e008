package harness

import (
	"fmt"

	"github.com/roach88/statespace/internal/explore"
)

// RunSummary is the deterministic part of one explore.Report.
type RunSummary struct {
	Workers     int            `json:"workers"`
	Strategy    string         `json:"strategy"`
	Frontier    string         `json:"frontier"`
	Backend     string         `json:"backend"`
	States      int64          `json:"states"`
	Transitions int64          `json:"transitions"`
	Depth       int            `json:"depth"`
	Truncated   bool           `json:"truncated"`
	Partitions  map[string]int `json:"partitions"`
}

// Label identifies the combination that produced the run.
func (r RunSummary) Label() string {
	return fmt.Sprintf("%s/%s/%s/workers=%d", r.Strategy, r.Frontier, r.Backend, r.Workers)
}

func summarize(report *explore.Report) RunSummary {
	parts := make(map[string]int, len(report.Partitions))
	for _, p := range report.Partitions {
		parts[p.Partition.String()] = p.Records
	}
	return RunSummary{
		Workers:     report.Workers,
		Strategy:    string(report.Strategy),
		Frontier:    string(report.Frontier),
		Backend:     string(report.Backend),
		States:      report.States,
		Transitions: report.Transitions,
		Depth:       report.Depth,
		Truncated:   report.Truncated,
		Partitions:  parts,
	}
}

// Result is the outcome of a scenario.
type Result struct {
	// Pass is true when every run met every expectation.
	Pass bool `json:"pass"`

	// Model is the resolved model name.
	Model string `json:"model"`

	// Runs holds one summary per matrix combination, in matrix order.
	Runs []RunSummary `json:"runs"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Runs:   []RunSummary{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
