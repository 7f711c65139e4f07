package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

func newInputsCommand(opts *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "inputs",
		Short: "Print the parsed step inputs",
		Long:  "Print every step input after list parsing. Secret values are masked.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, _, err := opts.loadInputs()
			if err != nil {
				return err
			}
			redacted := in.Redacted()
			switch strings.ToLower(strings.TrimSpace(format)) {
			case "", "yaml", "yml":
				b, err := yaml.Marshal(redacted)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(b)
				return err
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(redacted)
			default:
				return fmt.Errorf("unsupported --format %q (expected yaml or json)", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "yaml", "Output format: yaml, json")
	return cmd
}
