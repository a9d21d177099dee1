package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/jsbox/internal/config"
	"github.com/GriffinCanCode/jsbox/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/jsbox/internal/logging"
	"github.com/GriffinCanCode/jsbox/internal/runner"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	configFile string
	app        string
	overrides  func(*config.Config)
}

// parseFlags reads the command line. Flags only override configuration
// values when given explicitly.
func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := pflag.NewFlagSet("jsbox", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: jsbox [flags] [application]")
		fs.PrintDefaults()
	}

	configFile := fs.StringP("config", "c", "", "config file (.yaml, .yml or .toml)")
	baseDir := fs.String("base-dir", "", "directory applications are resolved in")
	utilsDir := fs.String("utils-dir", "", "utility module directory, relative to base dir")
	logFile := fs.String("log-file", "", "audit log file, appended to")
	reportFile := fs.String("report", "", "write the JSON run report here (- for stdout)")
	metricsFile := fs.String("metrics-file", "", "write Prometheus metrics in textfile format here")
	parseTimeout := fs.Duration("parse-timeout", 0, "parse budget")
	execTimeout := fs.Duration("exec-timeout", 0, "execution budget")
	linger := fs.Duration("linger", 0, "how long pending timers may keep the run alive (0 waits indefinitely)")
	deny := fs.StringSlice("deny", nil, "module name patterns require refuses")
	logLevel := fs.String("log-level", "", "harness log level")
	dev := fs.Bool("dev", false, "human-readable harness logs")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 1 {
		fs.Usage()
		return nil, fmt.Errorf("expected at most one application, got %d", fs.NArg())
	}

	return &options{
		configFile: *configFile,
		app:        fs.Arg(0),
		overrides: func(cfg *config.Config) {
			if fs.Changed("base-dir") {
				cfg.Sandbox.BaseDir = *baseDir
			}
			if fs.Changed("utils-dir") {
				cfg.Sandbox.UtilsDir = *utilsDir
			}
			if fs.Changed("log-file") {
				cfg.Logging.File = *logFile
			}
			if fs.Changed("report") {
				cfg.Output.ReportFile = *reportFile
			}
			if fs.Changed("metrics-file") {
				cfg.Output.MetricsFile = *metricsFile
			}
			if fs.Changed("parse-timeout") {
				cfg.Sandbox.ParseTimeout = config.Duration(*parseTimeout)
			}
			if fs.Changed("exec-timeout") {
				cfg.Sandbox.ExecTimeout = config.Duration(*execTimeout)
			}
			if fs.Changed("linger") {
				cfg.Sandbox.Linger = config.Duration(*linger)
			}
			if fs.Changed("deny") {
				cfg.Sandbox.Deny = *deny
			}
			if fs.Changed("log-level") {
				cfg.Logging.Level = *logLevel
			}
			if fs.Changed("dev") {
				cfg.Logging.Development = *dev
			}
		},
	}, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	cfg, err := config.Load(opts.configFile)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}
	opts.overrides(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Invalid config: %v\n", err)
		return 1
	}

	logCfg := logging.DefaultConfig()
	if cfg.Logging.Development {
		logCfg = logging.DevelopmentConfig()
	}
	if cfg.Logging.Level != "" {
		logCfg.Level = cfg.Logging.Level
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	r := runner.New(cfg, logger).
		WithMetrics(monitoring.NewMetrics()).
		WithOutput(stdout, stderr)

	err = reportPanics(stderr, logger, func() error {
		_, err := r.Run(ctx, opts.app)
		return err
	})
	var runErr *runner.RunError
	if err != nil && !errors.As(err, &runErr) {
		fmt.Fprintf(stderr, "Harness error: %v\n", err)
	}
	return runner.ExitCode(err)
}

// reportPanics runs fn and reports anything escaping it as an unhandled
// exception. The panic is logged only; the exit code still follows fn's
// error.
func reportPanics(stderr io.Writer, logger *logging.Logger, fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			fmt.Fprintf(stderr, "Unhandled exception: %v\n", p)
			logger.Error("unhandled exception", zap.Any("panic", p))
		}
	}()
	return fn()
}
