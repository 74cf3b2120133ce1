package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"net/url"
	"slices"

	"github.com/artpar/querywire/core/schema"
	"github.com/spf13/cobra"
)

func newBundleCmd(flags *globalFlags) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "bundle ACTION [JSON]",
		Short: "Build query parameters from JSON arguments",
		Long: `Bundle a JSON document of arguments into query parameters.

The document is read from the argument, or from stdin when omitted. It is
validated with the action's definition first, so defaults are filled in
and unknown names are rejected.

Examples:
  querywire bundle RunInstances '{"ImageId":"ami-1","MinCount":1,"MaxCount":1}'
  echo '{"VolumeId":["vol-1","vol-2"]}' | querywire bundle DescribeVolumes --format lines`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "query" && format != "lines" {
				return fmt.Errorf("unknown format %q (want query or lines)", format)
			}

			reg, err := flags.loadRegistry(cmd)
			if err != nil {
				return err
			}
			s, err := lookup(reg, args[0])
			if err != nil {
				return err
			}

			data, err := readInput(cmd, args, 1)
			if err != nil {
				return err
			}

			var doc map[string]any
			dec := json.NewDecoder(bytes.NewReader(data))
			dec.UseNumber()
			if err := dec.Decode(&doc); err != nil {
				return fmt.Errorf("arguments are not a JSON object: %w", err)
			}

			params, err := bundle(s, doc)
			if err != nil {
				return describeFailure(cmd, err)
			}

			out := cmd.OutOrStdout()
			if format == "lines" {
				for _, key := range slices.Sorted(maps.Keys(params)) {
					fmt.Fprintf(out, "%s=%s\n", key, params[key])
				}
				return nil
			}

			query := make(url.Values, len(params))
			for k, v := range params {
				query.Set(k, v)
			}
			fmt.Fprintln(out, query.Encode())
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "query", "output format: query or lines")
	return cmd
}

// bundle validates doc with s and returns its wire parameters.
func bundle(s *schema.Schema, doc map[string]any) (map[string]string, error) {
	parsed, rest, err := s.Extract(schema.FlattenText(doc))
	if err != nil {
		return nil, err
	}
	if err := schema.UnknownParameters(rest); err != nil {
		return nil, err
	}
	return s.Bundle(nil, parsed)
}
