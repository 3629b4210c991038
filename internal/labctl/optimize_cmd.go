package labctl

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"macdlab/backtest"
	"macdlab/optimize"
	"macdlab/report"
)

func newOptimizeCmd(opts *rootOptions) *cobra.Command {
	var method string

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Optimise MACD periods and compare them with the configured defaults",
		Long: `Optimise the MACD periods of each symbol on its first optimisation window,
then backtest the configured and the optimised parameters over the full series.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.runConfig()
			if err != nil {
				return err
			}
			if method != "" {
				switch optimize.Method(method) {
				case optimize.Pattern, optimize.Grid:
					cfg.Optimize.Method = optimize.Method(method)
				default:
					return fmt.Errorf("unknown method %q", method)
				}
			}

			all, err := opts.loadAll(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			bt := cfg.Backtest
			bt.OmitPoints = true
			for _, sym := range cfg.Symbols {
				s := all[sym]
				inSample := s.Slice(0, cfg.WalkForward.OptimizationWindow)
				res, err := optimize.Series(cmd.Context(), inSample, cfg.Backtest, cfg.Optimize)
				if err != nil {
					return fmt.Errorf("%s: %w", sym, err)
				}
				opts.logger.Info("optimised",
					zap.String("symbol", sym),
					zap.Stringer("params", res.Params),
					zap.Float64("in_sample_sharpe", res.Sharpe),
					zap.Int("evaluations", res.Evaluations),
					zap.Bool("fallback", res.Fallback))

				base, err := backtest.Run(s, cfg.Params, bt)
				if err != nil {
					return fmt.Errorf("%s: %w", sym, err)
				}
				tuned, err := backtest.Run(s, res.Params, bt)
				if err != nil {
					return fmt.Errorf("%s: %w", sym, err)
				}
				if err := report.Comparison(cmd.OutOrStdout(), base, tuned, opts.style()); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&method, "method", "", "search method: pattern or grid (default from config)")
	return cmd
}
