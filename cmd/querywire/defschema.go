package main

import (
	"fmt"

	"github.com/artpar/querywire/adapters/defschema"
	"github.com/spf13/cobra"
)

func newDefinitionSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "definition-schema",
		Short: "Print the JSON Schema of action definition files",
		Long: `Print the JSON Schema that action definition files are checked against.

Point an editor's YAML language server at it to get completion and
checking while writing definitions.

Example:
  querywire definition-schema > definition.schema.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := defschema.Generate()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}
