package labctl

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"macdlab/report"
	"macdlab/walkforward"
)

func newWalkForwardCmd(opts *rootOptions) *cobra.Command {
	var (
		out    string
		warmup bool
	)

	cmd := &cobra.Command{
		Use:   "walkforward",
		Short: "Re-optimise on rolling windows and score each choice out of sample",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.runConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("warmup") {
				cfg.WalkForward.Warmup = warmup
			}

			all, err := opts.loadAll(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			bySymbol := make(map[string][]walkforward.Result, len(cfg.Symbols))
			for _, sym := range cfg.Symbols {
				results, err := walkforward.Run(cmd.Context(), all[sym], cfg.WalkForward)
				if err != nil {
					return fmt.Errorf("%s: %w", sym, err)
				}
				bySymbol[sym] = results
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", sym)
				if err := report.WalkForward(cmd.OutOrStdout(), results, opts.style()); err != nil {
					return err
				}
			}

			if out == "" {
				return nil
			}
			f, err := createOutput(out)
			if err != nil {
				return err
			}
			defer f.Close()
			enc := json.NewEncoder(f)
			enc.SetIndent("", "  ")
			return enc.Encode(bySymbol)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "also write window results as JSON to this file")
	cmd.Flags().BoolVar(&warmup, "warmup", false, "compute test-window indicators over the preceding optimisation window")
	return cmd
}
