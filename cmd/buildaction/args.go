package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/example/buildaction/internal/buildx"
	"github.com/example/buildaction/internal/inputs"
	"github.com/spf13/cobra"
)

func newArgsCommand(opts *rootOptions) *cobra.Command {
	var format string
	var buildxVersion string
	var keepTemp bool
	cmd := &cobra.Command{
		Use:   "args",
		Short: "Print the docker buildx arguments for the step inputs",
		Long:  "Print the argument vector passed to docker buildx. Secret files referenced by --secret are removed on exit unless --keep-temp is set.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := opts.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			in, defaultContext, err := opts.loadInputs()
			if err != nil {
				return err
			}
			tmp := buildx.NewTempDir("")
			if !keepTemp {
				defer tmp.Cleanup()
			}
			argv, err := inputs.Args(cmd.Context(), in, inputs.ArgsOptions{
				DefaultContext: defaultContext,
				BuildxVersion:  opts.buildxVersion(cmd.Context(), buildxVersion, cmd.ErrOrStderr()),
				TempDir:        tmp,
				Logger:         logger,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch strings.ToLower(strings.TrimSpace(format)) {
			case "", "lines":
				for _, arg := range argv {
					fmt.Fprintln(out, arg)
				}
				return nil
			case "json":
				return json.NewEncoder(out).Encode(argv)
			default:
				return fmt.Errorf("unsupported --format %q (expected lines or json)", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "lines", "Output format: lines, json")
	cmd.Flags().StringVar(&buildxVersion, "buildx-version", "", "Assume this buildx version instead of asking docker")
	cmd.Flags().BoolVar(&keepTemp, "keep-temp", false, "Keep the temp dir holding iidfile, metadata and secret files")
	return cmd
}
