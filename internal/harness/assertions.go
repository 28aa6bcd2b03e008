package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/statespace/internal/explore"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string     // Assertion type for categorization
	Run      RunSummary // Run the assertion was evaluated on
	Expected string     // Human-readable expected outcome
	Actual   string     // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s (%s)\n", e.Type, e.Run.Label())
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	return buf.String()
}

// checkRun evaluates expect and assertions against one run and returns the
// failure messages.
func checkRun(run RunSummary, expect *Expect, assertions []Assertion) []string {
	var errs []string
	fail := func(typ, expected, actual string) {
		errs = append(errs, (&AssertionError{Type: typ, Run: run, Expected: expected, Actual: actual}).Error())
	}

	if expect != nil {
		if expect.States != nil && run.States != *expect.States {
			fail("states", fmt.Sprint(*expect.States), fmt.Sprint(run.States))
		}
		if expect.Transitions != nil && run.Transitions != *expect.Transitions {
			fail("transitions", fmt.Sprint(*expect.Transitions), fmt.Sprint(run.Transitions))
		}
		if expect.Depth != nil && run.Strategy == string(explore.StrategyLevel) && run.Depth != *expect.Depth {
			fail("depth", fmt.Sprint(*expect.Depth), fmt.Sprint(run.Depth))
		}
		if expect.Truncated != nil && run.Truncated != *expect.Truncated {
			fail("truncated", fmt.Sprint(*expect.Truncated), fmt.Sprint(run.Truncated))
		}
	}

	for _, a := range assertions {
		switch a.Type {
		case AssertPartitionRecords:
			got, ok := run.Partitions[a.Partition]
			if !ok {
				fail(a.Type, fmt.Sprintf("partition %s with %d records", a.Partition, a.Count), "no such partition")
			} else if int64(got) != a.Count {
				fail(a.Type, fmt.Sprintf("%s holds %d records", a.Partition, a.Count), fmt.Sprintf("%d records", got))
			}
		case AssertStatesAtLeast:
			if run.States < a.Count {
				fail(a.Type, fmt.Sprintf(">= %d states", a.Count), fmt.Sprint(run.States))
			}
		case AssertStatesAtMost:
			if run.States > a.Count {
				fail(a.Type, fmt.Sprintf("<= %d states", a.Count), fmt.Sprint(run.States))
			}
		}
	}
	return errs
}

// checkConsistent requires every complete run to agree on the counts of the
// first complete run.
func checkConsistent(runs []RunSummary) []string {
	var errs []string
	var ref *RunSummary
	for i := range runs {
		r := runs[i]
		if r.Truncated {
			continue
		}
		if ref == nil {
			ref = &runs[i]
			continue
		}
		if r.States != ref.States || r.Transitions != ref.Transitions {
			errs = append(errs, (&AssertionError{
				Type:     "consistent",
				Run:      r,
				Expected: fmt.Sprintf("%d states, %d transitions as in %s", ref.States, ref.Transitions, ref.Label()),
				Actual:   fmt.Sprintf("%d states, %d transitions", r.States, r.Transitions),
			}).Error())
		}
	}
	return errs
}
