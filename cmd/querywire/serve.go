package main

import (
	"fmt"

	"github.com/artpar/querywire/bootstrap"
	"github.com/spf13/cobra"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP service",
		Long: `Start the querywire HTTP service.

The server will:
  - Load configuration from querywire.yaml (or --config)
  - Or load configuration from QUERYWIRE_* environment variables
  - Load every action definition from the schema directory
  - Reload the configuration on change or SIGHUP
  - Reload definitions on change when schemas.watch is set

Endpoints:
  GET|POST /?Action=NAME&...     Extract parameters
  POST     /bundle/{action}      Bundle JSON arguments
  GET      /schemas[/{action}]   Describe actions
  GET      /health               Liveness

Environment variables:
  QUERYWIRE_SCHEMAS_DIR      - Schema directory (default: schemas)
  QUERYWIRE_SERVER_PORT      - Server port (default: 8080)
  QUERYWIRE_LOG_LEVEL        - Log level: debug, info, warn, error
  QUERYWIRE_METRICS_ENABLED  - Expose Prometheus metrics

Examples:
  querywire serve
  querywire serve --config /etc/querywire/querywire.yaml
  QUERYWIRE_SCHEMAS_DIR=/srv/schemas querywire serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap.New(bootstrap.Options{
				ConfigPath: flags.cfgFile,
				SchemasDir: flags.schemasDir,
			})
			if err != nil {
				return fmt.Errorf("error initializing: %w", err)
			}

			// Run (blocks until shutdown)
			return app.Run()
		},
	}
}
