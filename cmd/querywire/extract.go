package main

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/artpar/querywire/core/schema"
	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"
)

// dumper prints argument trees with stable key order.
var dumper = spew.ConfigState{
	Indent:                  "  ",
	SortKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

type extractResult struct {
	Action    string            `json:"action"`
	Arguments map[string]any    `json:"arguments"`
	Leftovers map[string]string `json:"leftovers,omitempty"`
}

func newExtractCmd(flags *globalFlags) *cobra.Command {
	var (
		query  string
		format string
	)

	cmd := &cobra.Command{
		Use:   "extract ACTION [NAME=VALUE ...]",
		Short: "Validate query parameters against an action",
		Long: `Extract typed arguments from query parameters.

Parameters are given as NAME=VALUE arguments, as a query string with
--query, or both. A repeated name is rejected the same way the service
rejects it.

Examples:
  querywire extract RunInstances ImageId=ami-1 MinCount=1 MaxCount=1
  querywire extract DescribeVolumes --query 'VolumeId.1=vol-1&VolumeId.2=vol-2'
  querywire extract RunInstances ImageId=ami-1 --format dump`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "dump" {
				return fmt.Errorf("unknown format %q (want json or dump)", format)
			}

			reg, err := flags.loadRegistry(cmd)
			if err != nil {
				return err
			}
			s, err := lookup(reg, args[0])
			if err != nil {
				return err
			}

			values, err := parseParams(query, args[1:])
			if err != nil {
				return err
			}

			parsed, rest, err := s.ExtractValues(values)
			if err != nil {
				return describeFailure(cmd, err)
			}

			out := cmd.OutOrStdout()
			if format == "dump" {
				dumper.Fdump(out, parsed.Map())
				for _, key := range slices.Sorted(maps.Keys(rest)) {
					fmt.Fprintf(out, "leftover %s=%s\n", key, rest[key])
				}
				return nil
			}

			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(extractResult{
				Action:    args[0],
				Arguments: parsed.Map(),
				Leftovers: rest,
			})
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "URL-encoded query string")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or dump")
	return cmd
}

// parseParams merges a query string with NAME=VALUE arguments.
func parseParams(query string, pairs []string) (url.Values, error) {
	values, err := url.ParseQuery(query)
	if err != nil {
		return nil, fmt.Errorf("parse query: %w", err)
	}
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("parameter %q is not NAME=VALUE", pair)
		}
		values.Add(name, value)
	}
	return values, nil
}

// describeFailure prints every request error and returns a summary.
func describeFailure(cmd *cobra.Command, err error) error {
	problems := schema.Errors(err)
	if len(problems) == 0 {
		return err
	}
	for _, p := range problems {
		fmt.Fprintf(cmd.ErrOrStderr(), "  %s %s\n", crossMark, p.Error())
	}
	if len(problems) == 1 {
		return fmt.Errorf("request rejected: %s", problems[0].Code)
	}
	return fmt.Errorf("request rejected with %d errors", len(problems))
}
