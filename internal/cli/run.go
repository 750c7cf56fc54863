package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wesleyorama2/kvlunge/internal/performance/config"
	"github.com/wesleyorama2/kvlunge/internal/performance/engine"
	"github.com/wesleyorama2/kvlunge/internal/performance/executor"
	"github.com/wesleyorama2/kvlunge/internal/performance/metrics"
	"github.com/wesleyorama2/kvlunge/internal/performance/output"
	"github.com/wesleyorama2/kvlunge/internal/performance/report"
)

// ErrThresholdsFailed is returned by a run that completed but failed at
// least one threshold.
var ErrThresholdsFailed = errors.New("one or more thresholds failed")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a load test from a configuration file",
	Long: `Run a load test against the targets of a configuration file and report
the outcome of every operation.

  kvlunge run --config mix.yaml
  kvlunge run --config mix.yaml --workers 8 --duration 1m --output results/mix
  kvlunge run --config mix.yaml --metrics-addr :9090 --json

Reports:
  --output path.json   JSON result
  --output path.html   HTML report
  --output path        both path.json and path.html
  --json               JSON result on stdout when --output is not given

The exit status is non-zero when a threshold fails or the run errors.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := runOptionsFromFlags(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runLoad(ctx, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

// runOptions are the flags of the run command.
type runOptions struct {
	ConfigPath  string
	OutputPath  string
	JSON        bool
	HTML        bool
	Quiet       bool
	Verbose     bool
	LogLevel    string
	MetricsAddr string

	// Overrides; zero leaves the configured value.
	Workers  int
	Duration time.Duration
	Seed     uint64
}

func runOptionsFromFlags(cmd *cobra.Command) (runOptions, error) {
	var opts runOptions
	opts.ConfigPath, _ = cmd.Flags().GetString("config")
	opts.OutputPath, _ = cmd.Flags().GetString("output")
	opts.JSON, _ = cmd.Flags().GetBool("json")
	opts.HTML, _ = cmd.Flags().GetBool("html")
	opts.Quiet, _ = cmd.Flags().GetBool("quiet")
	opts.Verbose, _ = cmd.Flags().GetBool("verbose")
	opts.LogLevel, _ = cmd.Flags().GetString("log-level")
	opts.MetricsAddr, _ = cmd.Flags().GetString("metrics-addr")
	opts.Workers, _ = cmd.Flags().GetInt("workers")
	opts.Seed, _ = cmd.Flags().GetUint64("seed")

	if d, _ := cmd.Flags().GetString("duration"); d != "" {
		dur, err := config.ParseDurationString(d)
		if err != nil {
			return opts, err
		}
		opts.Duration = dur
	}
	if opts.ConfigPath == "" {
		return opts, errors.New("--config is required")
	}
	if opts.Verbose && opts.LogLevel == "warn" {
		opts.LogLevel = "info"
	}
	return opts, nil
}

// applyOverrides applies the command-line overrides to cfg. A duration
// turns the run into a constant-workers run.
func applyOverrides(cfg *config.RunConfig, opts runOptions) {
	if opts.Workers > 0 {
		cfg.Workers = opts.Workers
	}
	if opts.Seed > 0 {
		cfg.Seed = opts.Seed
	}
	if opts.Duration > 0 {
		cfg.Duration = config.Duration(opts.Duration)
		cfg.Iterations = 0
		cfg.SharedIterations = 0
		cfg.Executor = ""
	}
}

// runLoad executes one run and writes its reports.
func runLoad(ctx context.Context, opts runOptions, stdout, stderr io.Writer) error {
	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	applyOverrides(cfg, opts)
	if cfg.Name == "" {
		cfg.Name = strings.TrimSuffix(filepath.Base(opts.ConfigPath), filepath.Ext(opts.ConfigPath))
	}

	logger, err := newLogger(opts.LogLevel, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	eng, err := engine.NewEngine(cfg, engine.WithLogger(logger))
	if err != nil {
		return err
	}

	// JSON on stdout moves the display to stderr.
	display := stdout
	if opts.JSON && opts.OutputPath == "" {
		display = stderr
	}
	execCfg := cfg.ExecutorConfig()
	console := output.NewConsoleOutput(output.ConsoleOutputConfig{
		TestName:      cfg.Name,
		Executor:      executor.Describe(execCfg),
		TotalDuration: execCfg.TotalDuration() + time.Duration(cfg.Warmup),
		Writer:        display,
		Quiet:         opts.Quiet,
	})
	console.PrintHeader()

	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})
	var result *engine.Result

	g.Go(func() error {
		defer close(done)
		var err error
		result, err = eng.Run(gctx)
		return err
	})
	if opts.MetricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, done, opts.MetricsAddr, eng.Recorder(), logger)
		})
	}
	g.Go(func() error {
		reportProgress(done, eng, console, opts.Quiet)
		return nil
	})

	runErr := g.Wait()
	if result == nil {
		return runErr
	}

	console.PrintSummary(result)
	if err := writeReports(result, opts, cfg.Name, stdout); err != nil {
		return err
	}

	if runErr != nil {
		return runErr
	}
	if !result.Passed {
		return ErrThresholdsFailed
	}
	return nil
}

// reportProgress refreshes the console until done is closed.
func reportProgress(done <-chan struct{}, eng *engine.Engine, console *output.ConsoleOutput, quiet bool) {
	ticker := time.NewTicker(console.UpdateInterval())
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			progress, _, stats := eng.Progress()
			ls := output.StatsFromSnapshot(eng.Snapshot(), progress, stats)
			if console.IsTTY() {
				console.Update(ls)
			} else if !quiet {
				console.PrintNonInteractiveUpdate(ls)
			}
		}
	}
}

// serveMetrics exposes the recorder on /metrics until the run is done or
// ctx is cancelled.
func serveMetrics(ctx context.Context, done <-chan struct{}, addr string, rec *metrics.Recorder, logger *zap.Logger) error {
	handler, err := metricsHandler(rec)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	server := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	logger.Info("serving metrics", zap.String("address", ln.Addr().String()))

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(ln) }()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	case <-done:
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// metricsHandler serves rec on /metrics and a liveness probe on /health.
func metricsHandler(rec *metrics.Recorder) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(metrics.NewCollector(rec)); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux, nil
}

// writeReports writes the JSON and HTML reports the flags ask for.
func writeReports(result *engine.Result, opts runOptions, name string, stdout io.Writer) error {
	path := opts.OutputPath
	ext := strings.ToLower(filepath.Ext(path))
	outputIsHTML := opts.HTML || ext == ".html"
	outputIsJSON := opts.JSON || ext == ".json"

	switch {
	case outputIsJSON && path == "":
		data, err := report.MarshalJSON(result)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, string(data))
		return err
	case outputIsJSON && ext == ".json":
		return writeReport(stdout, path, report.SaveJSON, result)
	case outputIsHTML && path == "":
		return writeReport(stdout, defaultHTMLPath(name), report.GenerateHTML, result)
	case outputIsHTML && ext == ".html":
		return writeReport(stdout, path, report.GenerateHTML, result)
	case path != "":
		if err := writeReport(stdout, path+".json", report.SaveJSON, result); err != nil {
			return err
		}
		return writeReport(stdout, path+".html", report.GenerateHTML, result)
	}
	return nil
}

func writeReport(stdout io.Writer, path string, write func(*engine.Result, string) error, result *engine.Result) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := write(result, path); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Report: %s\n", path)
	return nil
}

// defaultHTMLPath creates a default HTML report path based on the run name.
func defaultHTMLPath(name string) string {
	safeName := strings.ToLower(strings.NewReplacer(" ", "-", "/", "-").Replace(name))
	return fmt.Sprintf("kvlunge-report-%s-%s.html", safeName, time.Now().Format("20060102-150405"))
}

func init() {
	runCmd.Flags().StringP("config", "c", "", "Configuration file (YAML or JSON)")
	runCmd.Flags().String("output", "", "Report path; .json, .html or a base name for both")
	runCmd.Flags().Bool("json", false, "Write the JSON result (to stdout without --output)")
	runCmd.Flags().Bool("html", false, "Generate an HTML report")
	runCmd.Flags().BoolP("quiet", "q", false, "Disable live progress output, show only the verdict")
	runCmd.Flags().BoolP("verbose", "v", false, "Log run progress (same as --log-level info)")
	runCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address during the run")
	runCmd.Flags().Int("workers", 0, "Override the number of workers")
	runCmd.Flags().String("duration", "", "Override the bound with a duration (e.g. 30s, 5m)")
	runCmd.Flags().Uint64("seed", 0, "Override the random seed")
}
