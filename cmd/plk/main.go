package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"plk/internal/config"
	"plk/internal/controller"
	"plk/internal/journal"
	"plk/internal/metrics"
	"plk/internal/session"
	"plk/internal/timing"
	"plk/internal/views"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"plk.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Residuals struct {
		Par string `arg:"" help:"Parameter file (.par)"`
		Tim string `arg:"" help:"TOA file (.tim)"`
	} `cmd:"" help:"Load a project and print its prefit residuals"`

	Fit struct {
		Par     string `arg:"" help:"Parameter file (.par)"`
		Tim     string `arg:"" help:"TOA file (.tim)"`
		MaxIter int    `help:"Maximum fit iterations (0 uses the configured default)" default:"0"`
	} `cmd:"" help:"Load a project, fit the free parameters and print the result"`

	Console struct {
		Par string `arg:"" help:"Parameter file (.par)"`
		Tim string `arg:"" help:"TOA file (.tim)"`
	} `cmd:"" help:"Open an interactive console over the loaded project"`

	History struct {
		Limit int `help:"Number of entries to show" default:"20"`
	} `cmd:"" help:"Show recent mutation-journal entries"`
}

func main() {
	kctx := kong.Parse(&CLI)

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(1)
	}
	if CLI.Verbose {
		cfg.Logging.Level = "debug"
	}

	logger := config.NewLogger(cfg.Logging, os.Stderr)
	slog.SetDefault(logger)

	var code int
	switch kctx.Command() {
	case "residuals <par> <tim>":
		code = runResiduals(cfg, logger, CLI.Residuals.Par, CLI.Residuals.Tim)
	case "fit <par> <tim>":
		code = runFit(cfg, logger, CLI.Fit.Par, CLI.Fit.Tim, CLI.Fit.MaxIter)
	case "console <par> <tim>":
		code = runConsole(cfg, logger, CLI.Console.Par, CLI.Console.Tim)
	case "history":
		code = runHistory(cfg, CLI.History.Limit)
	default:
		fmt.Fprintln(os.Stderr, "unknown command:", kctx.Command())
		code = 1
	}
	os.Exit(code)
}

// newSession assembles a session from the configuration: the fit engine named
// by fitter.kind, the journal backend, the metrics recorder and the default
// ephemeris.
func newSession(cfg config.Config, logger *slog.Logger) (*session.Session, journal.Store, error) {
	engine, err := timing.NewEngine(string(config.NormalizeFitterKind(cfg.Fitter.Kind)))
	if err != nil {
		return nil, nil, err
	}

	var store journal.Store
	if cfg.Journal.Path != "" {
		store, err = journal.NewSQLiteStore(cfg.Journal.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open journal: %w", err)
		}
	} else {
		store = journal.NewMemoryStore()
	}

	opts := []session.Option{session.WithDefaultEphemeris(cfg.Fitter.Ephemeris)}
	if cfg.Metrics.Enabled {
		opts = append(opts, session.WithMetrics(metrics.NewPrometheusRecorder(nil)))
	}

	s := session.New(engine, logger, opts...)
	s.Detector().SetRecorder(journal.NewBoundaryRecorder(store, s.ID(), logger))
	return s, store, nil
}

func runResiduals(cfg config.Config, logger *slog.Logger, par, tim string) int {
	s, store, err := newSession(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}
	defer store.Close()

	status := views.NewStatusView(s.Hub())
	plot := views.NewPlotData(s.Hub())

	if err := s.Open(par, tim); err != nil {
		logger.Error("load failed", "error", err)
		return 1
	}

	epochs, residuals, errs := plot.Series()
	for i := range residuals {
		fmt.Printf("%14.8f  %12.4f  %8.3f\n", epochs[i], residuals[i], errs[i])
	}
	fmt.Println(status.Render())
	return 0
}

func runFit(cfg config.Config, logger *slog.Logger, par, tim string, maxIter int) int {
	s, store, err := newSession(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}
	defer store.Close()

	status := views.NewStatusView(s.Hub())
	if err := s.Open(par, tim); err != nil {
		logger.Error("load failed", "error", err)
		return 1
	}

	if maxIter == 0 {
		maxIter = cfg.Fitter.MaxIter
	}
	report, err := controller.NewFitController(s).Run(controller.RunRequest{MaxIter: maxIter})
	if err != nil {
		logger.Error("fit failed", "error", err)
		return 1
	}

	fmt.Println(report.String())
	for _, p := range s.Container().Params() {
		marker := " "
		for _, name := range report.Fitted {
			if name == p.Name {
				marker = "*"
			}
		}
		fmt.Printf("%s %-10s %20.12g  +/- %.3g\n", marker, p.Name, p.Value, p.Uncertainty)
	}
	fmt.Println(status.Render())
	return 0
}

func runHistory(cfg config.Config, limit int) int {
	if cfg.Journal.Path == "" {
		fmt.Fprintln(os.Stderr, "no journal configured (set journal.path)")
		return 1
	}
	store, err := journal.NewSQLiteStore(cfg.Journal.Path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open journal:", err)
		return 1
	}
	defer store.Close()

	entries, err := store.GetRecent(context.Background(), limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read journal:", err)
		return 1
	}
	for _, e := range entries {
		outcome := "ok"
		if e.Failed {
			outcome = "failed: " + e.Err
		}
		fmt.Printf("%s  %-10s  %-30v  %s\n",
			e.StartedAt.Format("2006-01-02 15:04:05"), e.Origin, e.Changed, outcome)
	}
	return 0
}
