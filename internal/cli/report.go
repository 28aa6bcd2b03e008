package cli

import (
	"io"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/statespace/internal/explore"
)

// ReportData is the JSON form of an exploration report.
type ReportData struct {
	RunID       string         `json:"run_id"`
	Model       string         `json:"model"`
	Strategy    string         `json:"strategy"`
	Frontier    string         `json:"frontier"`
	Backend     string         `json:"backend"`
	Workers     int            `json:"workers"`
	States      int64          `json:"states"`
	Transitions int64          `json:"transitions"`
	Depth       int            `json:"depth"`
	Truncated   bool           `json:"truncated"`
	ElapsedNS   int64          `json:"elapsed_ns"`
	StartedAt   time.Time      `json:"started_at"`
	Partitions  map[string]int `json:"partitions"`
}

func newReportData(r *explore.Report) ReportData {
	parts := make(map[string]int, len(r.Partitions))
	for _, p := range r.Partitions {
		parts[p.Partition.String()] = p.Records
	}
	return ReportData{
		RunID:       r.RunID,
		Model:       r.Model,
		Strategy:    string(r.Strategy),
		Frontier:    string(r.Frontier),
		Backend:     string(r.Backend),
		Workers:     r.Workers,
		States:      r.States,
		Transitions: r.Transitions,
		Depth:       r.Depth,
		Truncated:   r.Truncated,
		ElapsedNS:   r.Elapsed.Nanoseconds(),
		StartedAt:   r.StartedAt,
		Partitions:  parts,
	}
}

// writeReport renders r as aligned text with grouped numbers.
func writeReport(w io.Writer, r *explore.Report) error {
	p := message.NewPrinter(language.English)

	status := "complete"
	if r.Truncated {
		status = "truncated"
	}

	var parts []string
	for _, ps := range r.Partitions {
		parts = append(parts, p.Sprintf("%s=%d", ps.Partition, ps.Records))
	}
	slices.Sort(parts)

	lines := [][2]string{
		{"run", r.RunID},
		{"model", r.Model},
		{"strategy", p.Sprintf("%s (%s frontier, %d workers)", r.Strategy, r.Frontier, r.Workers)},
		{"backend", string(r.Backend)},
		{"states", p.Sprintf("%d", r.States)},
		{"transitions", p.Sprintf("%d", r.Transitions)},
	}
	if r.Strategy == explore.StrategyLevel {
		lines = append(lines, [2]string{"depth", p.Sprintf("%d", r.Depth)})
	}
	lines = append(lines,
		[2]string{"status", status},
		[2]string{"elapsed", r.Elapsed.Round(time.Microsecond).String()},
		[2]string{"partitions", strings.Join(parts, " ")},
	)
	if rate := statesPerSecond(r); rate > 0 {
		lines = append(lines, [2]string{"rate", p.Sprintf("%d states/s", rate)})
	}

	for _, l := range lines {
		if _, err := p.Fprintf(w, "%-12s %s\n", l[0], l[1]); err != nil {
			return err
		}
	}
	return nil
}

func statesPerSecond(r *explore.Report) int64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return int64(float64(r.States) / r.Elapsed.Seconds())
}
