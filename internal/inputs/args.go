package inputs

import (
	"context"
	"strings"

	"github.com/example/buildaction/internal/buildx"
	"github.com/example/buildaction/internal/sequence"
	"github.com/go-logr/logr"
)

// ArgsOptions carries what Args needs besides the inputs.
type ArgsOptions struct {
	DefaultContext string
	BuildxVersion  string
	TempDir        *buildx.TempDir
	Logger         logr.Logger
}

// Args returns the full `buildx build ... <context>` argument vector. Secret
// values are written to files under opts.TempDir and referenced by path.
func Args(ctx context.Context, in *Inputs, opts ArgsOptions) ([]string, error) {
	args := []string{"buildx"}
	build, err := BuildArgs(ctx, in, opts)
	if err != nil {
		return nil, err
	}
	args = append(args, build...)
	args = append(args, CommonArgs(in)...)
	args = append(args, in.Context)
	return args, nil
}

// BuildArgs returns the `build` subcommand and its build-specific flags.
func BuildArgs(ctx context.Context, in *Inputs, opts ArgsOptions) ([]string, error) {
	args := []string{"build"}
	if err := appendEach(ctx, &args, "--add-host", in.AddHosts); err != nil {
		return nil, err
	}
	if len(in.Allow) > 0 {
		args = append(args, "--allow", strings.Join(in.Allow, ","))
	}
	if err := appendEach(ctx, &args, "--build-arg", in.BuildArgs); err != nil {
		return nil, err
	}
	if err := appendEach(ctx, &args, "--cache-from", in.CacheFrom); err != nil {
		return nil, err
	}
	if err := appendEach(ctx, &args, "--cache-to", in.CacheTo); err != nil {
		return nil, err
	}
	if in.CgroupParent != "" {
		args = append(args, "--cgroup-parent", in.CgroupParent)
	}
	if in.File != "" {
		args = append(args, "--file", in.File)
	}
	if !buildx.IsLocalOrTarExporter(in.Outputs) && (len(in.Platforms) == 0 || buildx.Satisfies(opts.BuildxVersion, ">=0.4.2")) {
		path, err := opts.TempDir.ImageIDFile()
		if err != nil {
			return nil, err
		}
		args = append(args, "--iidfile", path)
	}
	if buildx.Satisfies(opts.BuildxVersion, ">=0.6.0") {
		path, err := opts.TempDir.MetadataFile()
		if err != nil {
			return nil, err
		}
		args = append(args, "--metadata-file", path)
	}
	if err := appendEach(ctx, &args, "--label", in.Labels); err != nil {
		return nil, err
	}
	if err := appendEach(ctx, &args, "--output", in.Outputs); err != nil {
		return nil, err
	}
	if len(in.Platforms) > 0 {
		args = append(args, "--platform", strings.Join(in.Platforms, ","))
	}
	if err := appendSecrets(ctx, &args, in.Secrets, false, opts); err != nil {
		return nil, err
	}
	if err := appendSecrets(ctx, &args, in.SecretFiles, true, opts); err != nil {
		return nil, err
	}
	if in.GithubToken != "" && !buildx.HasGitAuthToken(in.Secrets) && in.Context == opts.DefaultContext {
		secret, err := opts.TempDir.SecretString(buildx.GitAuthTokenSecret+"="+in.GithubToken, false)
		if err != nil {
			return nil, err
		}
		args = append(args, "--secret", secret)
	}
	if in.ShmSize != "" {
		args = append(args, "--shm-size", in.ShmSize)
	}
	if err := appendEach(ctx, &args, "--ssh", in.SSH); err != nil {
		return nil, err
	}
	if err := appendEach(ctx, &args, "--tag", in.Tags); err != nil {
		return nil, err
	}
	if in.Target != "" {
		args = append(args, "--target", in.Target)
	}
	if err := appendEach(ctx, &args, "--ulimit", in.Ulimit); err != nil {
		return nil, err
	}
	return args, nil
}

// CommonArgs returns the flags shared by every buildx invocation of the step.
func CommonArgs(in *Inputs) []string {
	var args []string
	if in.Builder != "" {
		args = append(args, "--builder", in.Builder)
	}
	if in.Load {
		args = append(args, "--load")
	}
	if in.Network != "" {
		args = append(args, "--network", in.Network)
	}
	if in.NoCache {
		args = append(args, "--no-cache")
	}
	if in.Pull {
		args = append(args, "--pull")
	}
	if in.Push {
		args = append(args, "--push")
	}
	return args
}

func appendEach(ctx context.Context, args *[]string, flag string, values []string) error {
	return sequence.ForEach(ctx, values, func(_ context.Context, value string) error {
		*args = append(*args, flag, value)
		return nil
	})
}

// appendSecrets skips secrets that cannot be materialized and logs why.
func appendSecrets(ctx context.Context, args *[]string, secrets []string, fromFile bool, opts ArgsOptions) error {
	entry := 0
	return sequence.ForEach(ctx, secrets, func(_ context.Context, kvp string) error {
		entry++
		secret, err := opts.TempDir.SecretString(kvp, fromFile)
		if err != nil {
			opts.Logger.Info("skipping secret", "entry", entry, "reason", err.Error())
			return nil
		}
		*args = append(*args, "--secret", secret)
		return nil
	})
}
