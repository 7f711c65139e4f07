package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/containerd/console"
	"github.com/example/buildaction/internal/actioninput"
	"github.com/example/buildaction/internal/buildx"
	"github.com/example/buildaction/internal/dockerconfig"
	"github.com/example/buildaction/internal/inputs"
	"github.com/example/buildaction/internal/version"
	"github.com/example/buildaction/pkg/buildkit"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
)

var errBuildxUnavailable = errors.New("docker buildx is required")

const (
	driverBuildx   = "buildx"
	driverBuildkit = "buildkit"
)

type buildOptions struct {
	driver          string
	buildkitAddr    string
	fallbackBuilder string
	progress        string
	dockerConfig    string
	tmpDir          string
	buildxVersion   string
	argCheck        string
	argRules        string
}

// stepResult holds the values published as step outputs.
type stepResult struct {
	imageID  string
	digest   string
	metadata string
}

func newBuildCommand(opts *rootOptions) *cobra.Command {
	bo := &buildOptions{driver: driverBuildx, progress: "auto", argCheck: "warn"}
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build (and optionally push) an image from the step inputs",
		Long:  "Run docker buildx build, or a direct BuildKit solve with --driver buildkit, and record imageid, digest and metadata as step outputs.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, opts, bo)
		},
	}
	cmd.Flags().StringVar(&bo.driver, "driver", bo.driver, "Build driver: buildx or buildkit")
	cmd.Flags().StringVar(&bo.buildkitAddr, "buildkit-addr", "", "BuildKit address for --driver buildkit (defaults to BUILDKIT_HOST or the rootless socket)")
	cmd.Flags().StringVar(&bo.fallbackBuilder, "fallback-builder", "", "Create this docker-container buildx builder when the BuildKit address does not answer (--driver buildkit)")
	cmd.Flags().StringVar(&bo.progress, "progress", bo.progress, "Progress output for --driver buildkit: auto, plain, tty, quiet, rawjson")
	cmd.Flags().StringVar(&bo.dockerConfig, "docker-config", "", "Docker config directory with registry credentials for --driver buildkit")
	cmd.Flags().StringVar(&bo.tmpDir, "tmp-dir", "", "Parent directory for the temp dir holding iidfile, metadata and secret files")
	cmd.Flags().StringVar(&bo.buildxVersion, "buildx-version", "", "Assume this buildx version instead of asking docker")
	cmd.Flags().StringVar(&bo.argCheck, "build-arg-check", bo.argCheck, "Credential check on build-args: warn, block or off")
	cmd.Flags().StringVar(&bo.argRules, "build-arg-rules", "", "YAML or JSON file overriding the build-arg credential rules by id")
	return cmd
}

func runBuild(cmd *cobra.Command, opts *rootOptions, bo *buildOptions) error {
	ctx := cmd.Context()
	logger, err := opts.logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	logger.V(1).Info("starting build", "agent", version.Get().UserAgent(), "driver", bo.driver)

	in, defaultContext, err := opts.loadInputs()
	if err != nil {
		return err
	}
	if err := checkBuildArgs(in, bo.argCheck, bo.argRules, cmd.ErrOrStderr()); err != nil {
		return err
	}
	tmp := buildx.NewTempDir(expandPath(bo.tmpDir))
	defer func() {
		if err := tmp.Cleanup(); err != nil {
			logger.Error(err, "removing temp dir")
		}
	}()

	var result stepResult
	switch strings.ToLower(strings.TrimSpace(bo.driver)) {
	case driverBuildx, "":
		result, err = runBuildx(ctx, cmd, opts, bo, in, defaultContext, tmp, logger)
	case driverBuildkit:
		if in.GithubToken != "" && in.Context == defaultContext {
			warnf(cmd.ErrOrStderr(), "github-token is ignored by the buildkit driver")
		}
		result, err = runBuildkit(ctx, cmd, opts, bo, in, tmp, logger)
	default:
		return fmt.Errorf("unsupported --driver %q (expected buildx or buildkit)", bo.driver)
	}
	if err != nil {
		return err
	}
	return publishOutputs(actioninput.NewOutputs(os.Getenv, cmd.OutOrStdout()), result)
}

func runBuildx(ctx context.Context, cmd *cobra.Command, opts *rootOptions, bo *buildOptions, in *inputs.Inputs, defaultContext string, tmp *buildx.TempDir, logger logr.Logger) (stepResult, error) {
	docker, err := buildx.DockerCommand(opts.docker)
	if err != nil {
		return stepResult{}, err
	}
	if !buildx.IsAvailable(ctx, docker) {
		return stepResult{}, errBuildxUnavailable
	}
	bxVersion := opts.buildxVersion(ctx, bo.buildxVersion, cmd.ErrOrStderr())
	logger.Info("using buildx", "version", bxVersion)

	argv, err := inputs.Args(ctx, in, inputs.ArgsOptions{
		DefaultContext: defaultContext,
		BuildxVersion:  bxVersion,
		TempDir:        tmp,
		Logger:         logger,
	})
	if err != nil {
		return stepResult{}, err
	}
	if err := execBuildx(ctx, docker, argv, cmd.OutOrStdout(), cmd.ErrOrStderr()); err != nil {
		return stepResult{}, err
	}

	var result stepResult
	if result.imageID, err = tmp.ImageID(); err != nil {
		return stepResult{}, err
	}
	if result.metadata, err = tmp.Metadata(); err != nil {
		return stepResult{}, err
	}
	if result.digest, err = buildx.Digest(result.metadata); err != nil {
		return stepResult{}, err
	}
	return result, nil
}

// execBuildx runs docker with argv, streaming output. A failure is reported
// with the last line buildx wrote to stderr.
func execBuildx(ctx context.Context, docker, argv []string, stdout, stderr io.Writer) error {
	full := append(append([]string{}, docker[1:]...), argv...)
	c := exec.CommandContext(ctx, docker[0], full...)
	var captured bytes.Buffer
	c.Stdout = stdout
	c.Stderr = io.MultiWriter(stderr, &captured)
	c.Env = os.Environ()
	if err := c.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return fmt.Errorf("run %s: %w", docker[0], err)
		}
		if line := lastLine(captured.String()); line != "" {
			return fmt.Errorf("buildx failed with: %s", line)
		}
		return fmt.Errorf("buildx failed with: %w", err)
	}
	return nil
}

// lastLine returns the last non-blank line of s, trimmed.
func lastLine(s string) string {
	s = strings.TrimRight(s, " \t\r\n")
	if i := strings.LastIndex(s, "\n"); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}

func runBuildkit(ctx context.Context, cmd *cobra.Command, opts *rootOptions, bo *buildOptions, in *inputs.Inputs, tmp *buildx.TempDir, logger logr.Logger) (stepResult, error) {
	docker, err := buildx.DockerCommand(opts.docker)
	if err != nil {
		return stepResult{}, err
	}
	addr := bo.buildkitAddr
	if addr == "" && in.Builder != "" {
		addr = buildkit.BuilderAddress(in.Builder)
	}
	cfg, err := dockerconfig.Load(expandPath(bo.dockerConfig), cmd.ErrOrStderr())
	if err != nil {
		return stepResult{}, fmt.Errorf("load docker config: %w", err)
	}
	solveOpt, err := buildkit.SolveOptions(in, buildkit.DriverOptions{
		TempDir:      tmp,
		DockerConfig: cfg,
		Logger:       logger,
	})
	if err != nil {
		return stepResult{}, err
	}
	resp, err := buildkit.Solve(ctx, solveOpt, buildkit.SolveConfig{
		Address:         addr,
		ProgressMode:    bo.progress,
		ProgressOutput:  progressFile(cmd.ErrOrStderr()),
		Logger:          logger,
		Docker:          docker,
		FallbackBuilder: bo.fallbackBuilder,
	})
	if err != nil {
		return stepResult{}, err
	}
	result := stepResult{
		imageID: resp["containerimage.config.digest"],
		digest:  buildkit.ImageDigest(resp),
	}
	if len(resp) > 0 {
		b, err := json.Marshal(resp)
		if err != nil {
			return stepResult{}, fmt.Errorf("encode metadata: %w", err)
		}
		result.metadata = string(b)
	}
	return result, nil
}

// progressFile returns w as a console file when it is one, and stderr otherwise.
func progressFile(w io.Writer) console.File {
	if f, ok := w.(console.File); ok {
		return f
	}
	return os.Stderr
}

func publishOutputs(out *actioninput.Outputs, result stepResult) error {
	values := []struct {
		name  string
		value string
	}{
		{"imageid", result.imageID},
		{"digest", result.digest},
		{"metadata", result.metadata},
	}
	for _, v := range values {
		if v.value == "" {
			continue
		}
		if err := out.Set(v.name, v.value); err != nil {
			return err
		}
	}
	return nil
}
