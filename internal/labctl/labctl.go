// Package labctl is the macdlab command line.
package labctl

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"macdlab/config"
	"macdlab/feed"
	"macdlab/internal/logging"
	"macdlab/model"
	"macdlab/report"
)

// Version is overridden at link time.
var Version = "dev"

type rootOptions struct {
	configPath string
	symbols    []string
	logLevel   string
	logFormat  string
	noColor    bool

	stdout io.Writer
	logger *zap.Logger
}

// Run executes the command line and returns the process exit code.
func Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(os.Stdout)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	opts := &rootOptions{stdout: stdout}

	root := &cobra.Command{
		Use:           "macdlab",
		Short:         "MACD crossover backtesting, optimisation and risk overlay",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(opts.logLevel, opts.logFormat)
			if err != nil {
				return err
			}
			opts.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}
	root.SetOut(stdout)

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "backtest.yaml", "run configuration file (YAML)")
	flags.StringSliceVar(&opts.symbols, "symbols", nil, "override the configured symbols (comma separated)")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "console", "log format: console or json")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable ANSI colours in reports")

	root.AddCommand(
		newBacktestCmd(opts),
		newOptimizeCmd(opts),
		newWalkForwardCmd(opts),
		newPortfolioCmd(opts),
		newServeCmd(opts),
	)
	return root
}

// runConfig loads the run file and applies command-line overrides.
func (o *rootOptions) runConfig() (config.RunConfig, error) {
	cfg, err := config.LoadRunConfig(o.configPath)
	if err != nil {
		return cfg, err
	}
	if len(o.symbols) > 0 {
		cfg.Symbols = config.NormalizeSymbols(o.symbols)
	}
	if cfg.Symbols, err = o.expand(cfg); err != nil {
		return cfg, err
	}
	cfg.Sync()
	if len(cfg.Symbols) == 0 {
		return cfg, fmt.Errorf("no symbols configured in %s", o.configPath)
	}
	cfg.Optimize.Logger = o.logger
	cfg.WalkForward.Logger = o.logger
	cfg.WalkForward.Optimize.Logger = o.logger
	cfg.Portfolio.Logger = o.logger
	cfg.Portfolio.Optimize.Logger = o.logger
	return cfg, nil
}

func (o *rootOptions) provider(cfg config.RunConfig) *feed.CSVProvider {
	p := feed.NewCSVProvider(cfg.DataDir, o.logger)
	p.Encoding = cfg.DataEncoding
	return p
}

// expand replaces glob symbols such as "XL*" with the matching data files.
func (o *rootOptions) expand(cfg config.RunConfig) ([]string, error) {
	var out []string
	for _, sym := range cfg.Symbols {
		if !feed.IsPattern(sym) {
			out = append(out, sym)
			continue
		}
		matched, err := o.provider(cfg).Match(sym)
		if err != nil {
			return nil, err
		}
		if len(matched) == 0 {
			return nil, fmt.Errorf("symbol pattern %q matches no files in %s", sym, cfg.DataDir)
		}
		out = append(out, matched...)
	}
	return config.NormalizeSymbols(out), nil
}

// loadAll loads every configured symbol, failing on the first error.
func (o *rootOptions) loadAll(ctx context.Context, cfg config.RunConfig) (map[string]model.PriceSeries, error) {
	p := o.provider(cfg)
	out := make(map[string]model.PriceSeries, len(cfg.Symbols))
	for _, sym := range cfg.Symbols {
		s, err := p.Load(ctx, sym, cfg.Start, cfg.End)
		if err != nil {
			return nil, err
		}
		out[sym] = s
	}
	return out, nil
}

func (o *rootOptions) style() report.Style {
	return report.Style{Color: !o.noColor}
}

// createOutput opens path for writing, creating parent directories.
func createOutput(path string) (*os.File, error) {
	p := strings.TrimSpace(path)
	if dir := filepath.Dir(p); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.Create(p)
}
