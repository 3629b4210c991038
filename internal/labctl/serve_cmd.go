package labctl

import (
	"github.com/spf13/cobra"

	"macdlab/config"
	"macdlab/internal/labd"
	"macdlab/internal/logging"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var appConfig string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := config.LoadConfig(appConfig)
			if err != nil {
				return err
			}
			logger := opts.logger
			if !cmd.Flags().Changed("log-level") && !cmd.Flags().Changed("log-format") {
				// The daemon logs the way the application config says.
				if logger, err = logging.New(app.Logging.Level, app.Logging.Format); err != nil {
					return err
				}
				defer func() { _ = logger.Sync() }()
			}
			return labd.Run(cmd.Context(), app, logger)
		},
	}
	cmd.Flags().StringVar(&appConfig, "app-config", "", "application config file (YAML); MACDLAB_* variables override it")
	return cmd
}
