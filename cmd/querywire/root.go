package main

import (
	"fmt"
	"io"
	"os"

	"github.com/artpar/querywire/bootstrap"
	"github.com/artpar/querywire/config"
	"github.com/artpar/querywire/core/registry"
	"github.com/artpar/querywire/core/schema"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	cfgFile    string
	schemasDir string
	verbose    bool
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "querywire",
		Short: "EC2-style query parameter marshaller",
		Long: `querywire turns flat query parameters such as

  BlockDeviceMapping.1.DeviceName=/dev/sda1&SecurityGroup.1=web

into typed, validated arguments using YAML action definitions, and turns
arguments back into query parameters.

Quick start:
  querywire validate                       # Check config and definitions
  querywire extract DescribeVolumes VolumeId.1=vol-1
  querywire serve                          # Start the HTTP service`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.cfgFile, "config", "c", "querywire.yaml", "config file path")
	cmd.PersistentFlags().StringVar(&flags.schemasDir, "schemas", "", "schema directory (overrides schemas.dir)")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log schema loading")

	cmd.AddCommand(
		newExtractCmd(flags),
		newBundleCmd(flags),
		newTemplatesCmd(flags),
		newValidateCmd(flags),
		newDefinitionSchemaCmd(),
		newServeCmd(flags),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, or the environment when the file is
// absent, and applies the --schemas override.
func (f *globalFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithFallback(f.cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if f.schemasDir != "" {
		cfg.Schemas.Dir = f.schemasDir
	}
	return cfg, nil
}

// logger returns a console logger on stderr, silent unless --verbose.
func (f *globalFlags) logger(cmd *cobra.Command) zerolog.Logger {
	if !f.verbose {
		return zerolog.Nop()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), NoColor: true}).
		With().Timestamp().Logger()
}

// loadRegistry loads every definition of the configured schema directory.
func (f *globalFlags) loadRegistry(cmd *cobra.Command) (*registry.Registry, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, err
	}

	logger := f.logger(cmd)
	reg := registry.New()
	n, err := reg.LoadDir(cfg.Schemas.Dir, bootstrap.SchemaOptions(cfg, logger, nil)...)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("dir", cfg.Schemas.Dir).Int("actions", n).Msg("schemas loaded")
	return reg, nil
}

// lookup returns the schema of action.
func lookup(reg *registry.Registry, action string) (*schema.Schema, error) {
	s, ok := reg.Get(action)
	if !ok {
		return nil, fmt.Errorf("unknown action %q (known: %v)", action, reg.Names())
	}
	return s, nil
}

// readInput returns args[i] when present, otherwise all of stdin.
func readInput(cmd *cobra.Command, args []string, i int) ([]byte, error) {
	if len(args) > i {
		return []byte(args[i]), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return data, nil
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)
