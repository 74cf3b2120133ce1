package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/artpar/querywire/adapters/defschema"
	"github.com/artpar/querywire/bootstrap"
	"github.com/artpar/querywire/core/registry"
	"github.com/artpar/querywire/core/schema"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newValidateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and action definitions",
		Long: `Validate the querywire configuration and every action definition.

Checks:
  - Config file syntax and values (or QUERYWIRE_* variables)
  - Definition files match the definition schema
  - Definitions build (types, enums, defaults, templates)
  - No action is declared twice

Examples:
  querywire validate
  querywire validate --config /etc/querywire/querywire.yaml
  querywire validate --schemas ./schemas`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.OutOrStdout(), flags)
		},
	}
}

func runValidate(out io.Writer, flags *globalFlags) error {
	fmt.Fprintf(out, "Validating %s...\n\n", flags.cfgFile)

	if _, err := os.Stat(flags.cfgFile); err == nil {
		fmt.Fprintf(out, "  %s Config file exists\n", checkMark)
	} else {
		fmt.Fprintf(out, "  %s Config file absent, using environment\n", checkMark)
	}

	cfg, err := flags.loadConfig()
	if err != nil {
		fmt.Fprintf(out, "  %s Config valid\n", crossMark)
		return err
	}
	fmt.Fprintf(out, "  %s Config valid\n", checkMark)
	fmt.Fprintf(out, "  %s Schema dir: %s\n", checkMark, cfg.Schemas.Dir)
	fmt.Fprintf(out, "  %s Limits: max index %d, max depth %d\n", checkMark, cfg.Limits.MaxIndex, cfg.Limits.MaxDepth)

	files, err := definitionFiles(cfg.Schemas.Dir)
	if err != nil {
		fmt.Fprintf(out, "  %s Schema dir readable\n", crossMark)
		return err
	}

	v, err := defschema.Default()
	if err != nil {
		return err
	}

	opts := bootstrap.SchemaOptions(cfg, zerolog.Nop(), nil)
	var (
		schemas []*schema.Schema
		failed  int
	)
	for _, path := range files {
		rel, _ := filepath.Rel(cfg.Schemas.Dir, path)

		if problems := v.ValidateFile(path); len(problems) > 0 {
			failed++
			fmt.Fprintf(out, "  %s %s\n", crossMark, rel)
			for _, p := range problems {
				fmt.Fprintf(out, "      %s\n", p)
			}
			continue
		}

		s, err := schema.ParseFile(path, opts...)
		if err != nil {
			failed++
			fmt.Fprintf(out, "  %s %s\n", crossMark, rel)
			fmt.Fprintf(out, "      %s\n", indent(unwrapPath(err, path)))
			continue
		}

		fmt.Fprintf(out, "  %s %s (%s, %d templates)\n", checkMark, rel, s.Name(), len(s.Templates()))
		schemas = append(schemas, s)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d definitions invalid", failed, len(files))
	}

	if err := registry.New().Replace(schemas); err != nil {
		var conflict *registry.ConflictError
		if errors.As(err, &conflict) {
			fmt.Fprintf(out, "  %s Actions unique\n", crossMark)
		}
		return err
	}
	fmt.Fprintf(out, "  %s Actions unique (%d)\n", checkMark, len(schemas))

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Configuration is valid.")
	return nil
}

// definitionFiles lists the YAML files under dir.
func definitionFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ext := filepath.Ext(path); ext == ".yaml" || ext == ".yml" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read schema dir: %w", err)
	}
	return files, nil
}

// unwrapPath drops the file path prefix ParseFile adds to its errors.
func unwrapPath(err error, path string) string {
	return strings.TrimPrefix(err.Error(), path+": ")
}

func indent(s string) string {
	return strings.ReplaceAll(s, "\n", "\n      ")
}
