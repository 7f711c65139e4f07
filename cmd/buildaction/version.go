// File: cmd/buildaction/version.go
// Brief: CLI command wiring and implementation for 'version'.

package main

import (
	"encoding/json"
	"fmt"

	"github.com/example/buildaction/internal/version"
	"github.com/spf13/cobra"
)

func newVersionCommand() *cobra.Command {
	var short bool
	var asJSON bool
	cmd := &cobra.Command{
		Use:           "version",
		Short:         "Print the buildaction version information",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()
			out := cmd.OutOrStdout()
			switch {
			case short:
				fmt.Fprintln(out, info.Version)
				return nil
			case asJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			fmt.Fprintf(out, "Version: %s\n", info.Version)
			if info.GitCommit != "" {
				fmt.Fprintf(out, "GitCommit: %s\n", info.GitCommit)
			}
			if info.GitTreeState != "" {
				fmt.Fprintf(out, "GitTreeState: %s\n", info.GitTreeState)
			}
			if info.BuildDate != "" {
				fmt.Fprintf(out, "BuildDate: %s\n", info.BuildDate)
			}
			fmt.Fprintf(out, "GoVersion: %s\n", info.GoVersion)
			fmt.Fprintf(out, "Platform: %s\n", info.Platform)
			return nil
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "Print just the version number")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print version information as JSON")
	return cmd
}
