package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/statespace/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Model    string
}

// RunRow is the JSON form of one recorded run.
type RunRow struct {
	ID          string    `json:"id"`
	Model       string    `json:"model"`
	Strategy    string    `json:"strategy"`
	Backend     string    `json:"backend"`
	Workers     int       `json:"workers"`
	States      int64     `json:"states"`
	Transitions int64     `json:"transitions"`
	Depth       int       `json:"depth"`
	Truncated   bool      `json:"truncated"`
	ElapsedNS   int64     `json:"elapsed_ns"`
	StartedAt   time.Time `json:"started_at"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded exploration runs",
		Long: `List the runs recorded by "statespace explore --db".

Examples:
  statespace history --db runs.db
  statespace history --db runs.db --model "ring(size=10)" --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Model, "model", "", "only list runs of this model")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)

	// Opening would create an empty database; a missing file is a typo.
	if _, err := os.Stat(opts.Database); err != nil {
		out.Error(CodeHistory, fmt.Sprintf("database not found: %s", opts.Database), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", opts.Database))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		out.Error(CodeHistory, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	runs, err := st.ReadRuns(cmd.Context(), opts.Model)
	if err != nil {
		out.Error(CodeHistory, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read runs", err)
	}

	if out.JSON() {
		rows := make([]RunRow, len(runs))
		for i, r := range runs {
			rows[i] = RunRow{
				ID: r.ID, Model: r.Model, Strategy: r.Strategy, Backend: r.Backend,
				Workers: r.Workers, States: r.States, Transitions: r.Transitions,
				Depth: r.Depth, Truncated: r.Truncated,
				ElapsedNS: r.Elapsed.Nanoseconds(), StartedAt: r.StartedAt,
			}
		}
		return out.Success(rows)
	}

	if len(runs) == 0 {
		fmt.Fprintln(out.Writer, "No runs recorded.")
		return nil
	}

	p := message.NewPrinter(language.English)
	tw := tabwriter.NewWriter(out.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tRUN\tMODEL\tSTRATEGY\tBACKEND\tWORKERS\tSTATES\tTRANSITIONS\tSTATUS")
	for _, r := range runs {
		status := "complete"
		if r.Truncated {
			status = "truncated"
		}
		p.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.StartedAt.UTC().Format(time.RFC3339), r.ID, r.Model, r.Strategy, r.Backend,
			r.Workers, r.States, r.Transitions, status)
	}
	return tw.Flush()
}
