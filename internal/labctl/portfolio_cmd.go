package labctl

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"macdlab/broker"
	"macdlab/config"
	"macdlab/portfolio"
	"macdlab/report"
)

func newPortfolioCmd(opts *rootOptions) *cobra.Command {
	var (
		appConfig string
		out       string
	)

	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Replay history through the multi-asset risk overlay",
		Long: `Replay the aligned history of every symbol through the risk overlay.
Target weights are logged and, when kafka.enabled is set in the application
config, published to Kafka.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.runConfig()
			if err != nil {
				return err
			}
			app, err := config.LoadConfig(appConfig)
			if err != nil {
				return err
			}

			sinks := broker.Multi{broker.LogSink{Logger: opts.logger}}
			if app.Kafka.Enabled {
				ks := broker.NewKafkaSink(app.Kafka.Broker(), opts.logger)
				defer ks.Close()
				sinks = append(sinks, ks)
				opts.logger.Info("publishing target weights",
					zap.Strings("brokers", app.Kafka.Brokers),
					zap.String("topic", app.Kafka.Topic))
			}

			series, err := opts.loadAll(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			res, err := portfolio.Simulate(cmd.Context(), series, cfg.Portfolio, sinks)
			if err != nil {
				return err
			}
			if err := report.Portfolio(cmd.OutOrStdout(), res, cfg.InitialCash, opts.style()); err != nil {
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
			enc := json.NewEncoder(f)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&appConfig, "app-config", "", "application config with the kafka section")
	cmd.Flags().StringVarP(&out, "out", "o", "", "also write the simulation result as JSON to this file")
	return cmd
}
