package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newTemplatesCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "templates [ACTION]",
		Short: "List the parameter templates of actions",
		Long: `List every leaf template an action accepts, with its type and bounds.

Without an action, lists the registered actions.

Examples:
  querywire templates
  querywire templates RunInstances`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := flags.loadRegistry(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, name := range reg.Names() {
					fmt.Fprintln(out, name)
				}
				return nil
			}

			s, err := lookup(reg, args[0])
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TEMPLATE\tTYPE\tREQUIRED\tDEFAULT\tRANGE")
			for _, template := range s.Templates() {
				p, _ := s.Parameter(template)
				required := "yes"
				if p.IsOptional() {
					required = "no"
				}
				def := "-"
				if v := p.DefaultValue(); v != nil {
					def = fmt.Sprint(v)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", template, p.Type().Kind(), required, def, bounds(p.Range()))
			}
			return w.Flush()
		},
	}
}

func bounds(lo, hi *int) string {
	switch {
	case lo != nil && hi != nil:
		return fmt.Sprintf("%d..%d", *lo, *hi)
	case lo != nil:
		return fmt.Sprintf(">= %d", *lo)
	case hi != nil:
		return fmt.Sprintf("<= %d", *hi)
	}
	return "-"
}
