package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/roach88/statespace/internal/config"
	"github.com/roach88/statespace/internal/explore"
	"github.com/roach88/statespace/internal/models"
	"github.com/roach88/statespace/internal/statestore"
	"github.com/roach88/statespace/internal/store"
)

// ExploreOptions holds flags for the explore command.
type ExploreOptions struct {
	*RootOptions
	ConfigPath  string
	Workers     int
	Strategy    string
	Frontier    string
	Backend     string
	StorePath   string
	BucketBits  uint
	MaxStates   int64
	Database    string
	Params      map[string]int
	MetricsAddr string

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs explore.RunIDGenerator
	// Registerer receives the run metrics when MetricsAddr is empty
	// (for testing). If both are unset no metrics are collected.
	Registerer prometheus.Registerer
}

// NewExploreCommand creates the explore command.
func NewExploreCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExploreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explore <model>",
		Short: "Explore every reachable state of a model",
		Long: `Explore every reachable state of a model and report the counts.

<model> is a built-in model (see "statespace models") or a CUE rule file,
optionally followed by #name to pick one model from the file.

Settings come from --config, then from flags that are set explicitly.
With --db the run is recorded in a SQLite run history; with the sqlite
backend the same database also holds the state records.

Exit codes:
  0 - Exploration finished (possibly truncated by --max-states)
  1 - Model error or interrupted run
  2 - Command error (bad flags, unreadable config, unknown model)

Examples:
  statespace explore ring --param size=1000
  statespace explore torus --strategy level --workers 8
  statespace explore ./mutex.cue#mutex --backend pebble --db runs.db
  statespace explore stack --config explore.yaml --metrics-addr :9090`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplore(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "YAML configuration file")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", 0, "worker goroutines (0 = number of CPUs)")
	cmd.Flags().StringVar(&opts.Strategy, "strategy", string(explore.StrategyPooled), "exploration strategy (pooled|level)")
	cmd.Flags().StringVar(&opts.Frontier, "frontier", "lockfree", "frontier queue (lockfree|locked)")
	cmd.Flags().StringVar(&opts.Backend, "backend", string(statestore.BackendSlab), "state store backend (slab|map|sqlite|pebble)")
	cmd.Flags().StringVar(&opts.StorePath, "store-path", "", "sqlite file or pebble directory for the state store")
	cmd.Flags().UintVar(&opts.BucketBits, "bucket-bits", 0, "log2 of the slab backend bucket count")
	cmd.Flags().Int64Var(&opts.MaxStates, "max-states", 0, "stop after this many states (0 = no cap)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database for run history")
	cmd.Flags().StringToIntVarP(&opts.Params, "param", "p", nil, "model parameter as key=value (repeatable)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")

	return cmd
}

// loadExploreConfig merges the config file with explicitly set flags.
func loadExploreConfig(opts *ExploreOptions, cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(opts.ConfigPath); err != nil {
			return cfg, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Workers = opts.Workers
	}
	if flags.Changed("strategy") {
		cfg.Strategy = opts.Strategy
	}
	if flags.Changed("frontier") {
		cfg.Frontier = opts.Frontier
	}
	if flags.Changed("backend") {
		cfg.Store.Backend = opts.Backend
	}
	if flags.Changed("store-path") {
		cfg.Store.Path = opts.StorePath
	}
	if flags.Changed("bucket-bits") {
		cfg.Store.BucketBits = opts.BucketBits
	}
	if flags.Changed("max-states") {
		cfg.MaxStates = opts.MaxStates
	}
	return cfg, cfg.Validate()
}

func runExplore(opts *ExploreOptions, modelName string, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadExploreConfig(opts, cmd)
	if err != nil {
		out.Error(CodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	model, err := models.Resolve(modelName, opts.Params)
	if err != nil {
		out.Error(CodeModel, err.Error(), nil)
		return WrapExitError(ExitCommandError, "cannot resolve model", err)
	}
	out.VerboseLog("model %s, %d workers, %s strategy, %s backend",
		explore.ModelName(model), cfg.WorkerCount(), cfg.Strategy, cfg.Store.Backend)

	// Run history; with the sqlite backend it also holds the records.
	var history *store.Store
	if opts.Database != "" {
		history, err = store.Open(opts.Database)
		if err != nil {
			out.Error(CodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := history.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
	}

	storeCfg := cfg.StoreConfig()
	if storeCfg.Backend == statestore.BackendSQLite && history != nil && storeCfg.Path == "" {
		storeCfg.Records = history
	}
	st, err := statestore.Open(storeCfg)
	if err != nil {
		out.Error(CodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open state store", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing state store", "error", closeErr)
		}
	}()

	xopts := cfg.ExploreOptions()
	if opts.RunIDs != nil {
		xopts = append(xopts, explore.WithRunIDGenerator(opts.RunIDs))
	}

	reg := opts.Registerer
	var metricsSrv *http.Server
	if opts.MetricsAddr != "" {
		r := prometheus.NewRegistry()
		reg = r
		metricsSrv, err = serveMetrics(opts.MetricsAddr, r)
		if err != nil {
			out.Error(CodeConfig, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to serve metrics", err)
		}
		defer shutdownMetrics(metricsSrv)
	}
	if reg != nil {
		m, err := explore.NewMetrics(reg)
		if err != nil {
			out.Error(CodeInternal, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to register metrics", err)
		}
		xopts = append(xopts, explore.WithMetrics(m))
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, runErr := explore.New(st, model, xopts...).Run(ctx)
	if report == nil {
		out.Error(CodeExplore, runErr.Error(), nil)
		return WrapExitError(ExitCommandError, "exploration did not start", runErr)
	}

	if history != nil {
		if err := history.WriteRun(context.Background(), runRecord(report)); err != nil {
			slog.Error("failed to record run", "run_id", report.RunID, "error", err)
		}
	}

	if runErr != nil {
		details := newReportData(report)
		out.Error(CodeExplore, runErr.Error(), details)
		return WrapExitError(ExitFailure, "exploration failed", runErr)
	}

	if out.JSON() {
		return out.encode(CLIResponse{Status: "ok", Data: newReportData(report), RunID: report.RunID})
	}
	return writeReport(out.Writer, report)
}

func runRecord(r *explore.Report) store.Run {
	return store.Run{
		ID:          r.RunID,
		Model:       r.Model,
		Strategy:    string(r.Strategy),
		Backend:     string(r.Backend),
		Workers:     r.Workers,
		States:      r.States,
		Transitions: r.Transitions,
		Depth:       r.Depth,
		Truncated:   r.Truncated,
		Elapsed:     r.Elapsed,
		StartedAt:   r.StartedAt,
	}
}

// serveMetrics starts a /metrics endpoint for reg on addr. The listener is
// bound before returning so address errors surface immediately.
func serveMetrics(addr string, reg *prometheus.Registry) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	slog.Info("serving metrics", "addr", ln.Addr().String())
	return srv, nil
}

func shutdownMetrics(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("metrics server shutdown", "error", err)
	}
}
