// main.go bootstraps buildaction: it builds the root Cobra command, binds configuration and executes with signal-aware contexts.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/example/buildaction/internal/actioninput"
	"github.com/example/buildaction/pkg/buildkit"
	"github.com/fatih/color"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rootCmd := newRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	handleError(err)
	if err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{logLevel: "info", docker: "docker"}
	binder := newConfigBinder(os.Getenv("BUILDACTION_CONFIG"))
	cmd := &cobra.Command{
		Use:           "buildaction",
		Short:         "Build and push container images from CI step inputs",
		Long:          "buildaction reads build step inputs (INPUT_* variables, an inputs file or action.yml defaults), turns them into a docker buildx invocation or a direct BuildKit solve, and records the resulting image id, digest and metadata as step outputs.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := binder.apply(cmd); err != nil {
				return err
			}
			if os.Getenv("NO_COLOR") != "" {
				color.NoColor = true
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", opts.logLevel, "Log level for buildaction output (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.inputsFile, "inputs-file", "", "YAML, JSON or TOML file mapping input names to values")
	cmd.PersistentFlags().StringVar(&opts.actionFile, "action-file", "", "action.yml whose input defaults apply when an input is unset")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "dotenv file loaded before reading INPUT_* variables")
	cmd.PersistentFlags().StringVar(&opts.docker, "docker", opts.docker, "Docker command used to invoke buildx (for example \"sudo docker\")")
	cmd.AddCommand(
		newInputsCommand(opts),
		newArgsCommand(opts),
		newBuildCommand(opts),
		newEnvCommand(),
		newVersionCommand(),
	)
	cmd.Example = `  # Build with inputs from the environment
  INPUT_TAGS=user/app:latest INPUT_PUSH=true buildaction build

  # Preview the buildx command line for an inputs file
  buildaction args --inputs-file inputs.yaml

  # Solve directly against a BuildKit daemon
  buildaction build --driver buildkit --buildkit-addr tcp://buildkitd:1234`
	return cmd
}

// configBinder fills flags the user did not set from BUILDACTION_* variables
// and the config file.
type configBinder struct {
	v        *viper.Viper
	explicit bool
}

func newConfigBinder(configFile string) *configBinder {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.SetEnvPrefix("BUILDACTION")
	v.AutomaticEnv()
	configureConfigFile(v, configFile)
	return &configBinder{v: v, explicit: configFile != ""}
}

func (b *configBinder) apply(cmd *cobra.Command) error {
	flagSets := []*pflag.FlagSet{cmd.Flags(), cmd.InheritedFlags()}
	for _, fs := range flagSets {
		if err := b.v.BindPFlags(fs); err != nil {
			return err
		}
	}
	if err := readConfigFile(b.v, b.explicit); err != nil {
		return err
	}
	var setErr error
	for _, fs := range flagSets {
		fs.VisitAll(func(f *pflag.Flag) {
			if f.Changed || !b.v.IsSet(f.Name) {
				return
			}
			val := fmt.Sprintf("%v", b.v.Get(f.Name))
			if val == "" {
				return
			}
			if err := f.Value.Set(val); err != nil && setErr == nil {
				setErr = fmt.Errorf("invalid value %q for --%s: %w", val, f.Name, err)
			}
		})
	}
	return setErr
}

func configureConfigFile(v *viper.Viper, explicitPath string) {
	if explicitPath != "" {
		v.SetConfigFile(expandPath(explicitPath))
		return
	}
	v.SetConfigName("config")
	for _, dir := range configSearchDirs() {
		v.AddConfigPath(dir)
	}
}

func readConfigFile(v *viper.Viper, strict bool) error {
	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if errors.As(err, &cfgErr) && !strict {
			return nil
		}
		return err
	}
	return nil
}

func configSearchDirs() []string {
	added := make(map[string]struct{})
	var dirs []string
	add := func(path string) {
		if path == "" {
			return
		}
		if _, ok := added[path]; ok {
			return
		}
		added[path] = struct{}{}
		dirs = append(dirs, path)
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		add(filepath.Join(xdg, "buildaction"))
	}
	if home, err := homedir.Dir(); err == nil && home != "" {
		add(filepath.Join(home, ".config", "buildaction"))
		add(filepath.Join(home, ".buildaction"))
	}
	return dirs
}

func handleError(err error) {
	if err == nil || errors.Is(err, pflag.ErrHelp) {
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", errorMessage(err))
}

func errorMessage(err error) string {
	message := err.Error()
	switch {
	case errors.Is(err, errBuildxUnavailable):
		message = fmt.Sprintf("%s\nHint: install the buildx plugin or run with --driver buildkit.", err)
	case errors.Is(err, buildkit.ErrUnsupportedInput):
		message = fmt.Sprintf("%s\nHint: load and allow need the buildx driver.", err)
	case errors.Is(err, actioninput.ErrRequiredInput):
		message = fmt.Sprintf("%s\nHint: set the INPUT_<NAME> variable or add the input to --inputs-file.", err)
	case errors.Is(err, errSecretBuildArg):
		message = fmt.Sprintf("%s\nHint: move the values to the secrets input or rerun with --build-arg-check warn.", err)
	case errors.Is(err, actioninput.ErrInvalidBoolean):
		message = fmt.Sprintf("%s\nHint: boolean inputs accept true, True, TRUE, false, False or FALSE.", err)
	}
	return message
}
