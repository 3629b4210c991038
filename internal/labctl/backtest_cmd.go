package labctl

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"macdlab/backtest"
	"macdlab/report"
)

func newBacktestCmd(opts *rootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Backtest the configured parameters on every symbol",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.runConfig()
			if err != nil {
				return err
			}

			bt := cfg.Backtest
			bt.OmitPoints = out == ""
			runner := backtest.NewRunner(opts.provider(cfg), opts.logger)
			results, err := runner.Run(cmd.Context(), backtest.Job{
				Symbols: cfg.Symbols,
				Start:   cfg.Start,
				End:     cfg.End,
				Params:  cfg.Params,
				Options: bt,
			})
			if err != nil {
				return err
			}

			if err := report.Backtest(cmd.OutOrStdout(), results, opts.style()); err != nil {
				return err
			}
			if out == "" {
				return nil
			}
			f, err := createOutput(out)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := backtest.WriteResultsJSON(f, results); err != nil {
				return err
			}
			opts.logger.Info("results written", zap.String("path", out), zap.Int("symbols", len(results)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "also write per-point results as JSON to this file")
	return cmd
}
