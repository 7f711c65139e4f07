package buildkit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/containerd/console"
	"github.com/example/buildaction/internal/inputs"
	"github.com/go-logr/logr"
	"github.com/moby/buildkit/client"
	"github.com/moby/buildkit/session"
	"github.com/moby/buildkit/session/auth/authprovider"
	"github.com/moby/buildkit/session/filesync"
	"github.com/moby/buildkit/session/secrets/secretsprovider"
	"github.com/moby/buildkit/session/sshforward/sshprovider"
	"github.com/moby/buildkit/util/progress/progresswriter"
	"golang.org/x/sync/errgroup"
)

// SolveConfig configures a direct BuildKit solve. FallbackBuilder names a
// docker-container buildx builder created with Docker when Address does not
// answer; empty disables the fallback.
type SolveConfig struct {
	Address         string
	ProgressMode    string
	ProgressOutput  console.File
	Logger          logr.Logger
	Docker          []string
	FallbackBuilder string
}

// Solve connects to BuildKit, runs the solve while rendering progress and
// returns the exporter response.
func Solve(ctx context.Context, opt client.SolveOpt, cfg SolveConfig) (map[string]string, error) {
	if cfg.Address == "" {
		cfg.Address = DefaultBuilderAddress()
	}
	if cfg.ProgressOutput == nil {
		cfg.ProgressOutput = os.Stderr
	}
	if cfg.ProgressMode == "" {
		cfg.ProgressMode = "auto"
	}
	for _, key := range sortedKeys(opt.FrontendAttrs) {
		cfg.Logger.V(1).Info("frontend attribute", "key", key, "value", opt.FrontendAttrs[key])
	}

	c, addr, err := newClientFactory(cfg).connect(ctx, cfg.Address)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	cfg.Logger.V(1).Info("connected to buildkit", "address", addr)

	eg, egCtx := errgroup.WithContext(ctx)
	pw, err := progresswriter.NewPrinter(egCtx, cfg.ProgressOutput, cfg.ProgressMode)
	if err != nil {
		return nil, fmt.Errorf("create progress UI: %w", err)
	}

	var resp *client.SolveResponse
	eg.Go(func() error {
		var solveErr error
		resp, solveErr = c.Solve(egCtx, nil, opt, pw.Status())
		return solveErr
	})
	eg.Go(func() error {
		<-pw.Done()
		return pw.Err()
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if resp == nil {
		return map[string]string{}, nil
	}
	return resp.ExporterResponse, nil
}

// ImageDigest returns the image digest reported by the exporters.
func ImageDigest(resp map[string]string) string {
	if d := resp["containerimage.digest"]; d != "" {
		return d
	}
	return resp["oci.digest"]
}

func sessionAttachables(in *inputs.Inputs, opts DriverOptions) ([]session.Attachable, error) {
	attachable := []session.Attachable{
		authprovider.NewDockerAuthProvider(authprovider.DockerAuthProviderConfig{
			ConfigFile: opts.DockerConfig,
		}),
	}

	sources, err := secretSources(in, opts)
	if err != nil {
		return nil, err
	}
	if len(sources) > 0 {
		store, err := secretsprovider.NewStore(sources)
		if err != nil {
			return nil, err
		}
		attachable = append(attachable, secretsprovider.NewSecretProvider(store))
	}

	if len(in.SSH) > 0 {
		configs := make([]sshprovider.AgentConfig, 0, len(in.SSH))
		for _, spec := range in.SSH {
			configs = append(configs, parseSSH(spec))
		}
		agent, err := sshprovider.NewSSHAgentProvider(configs)
		if err != nil {
			return nil, fmt.Errorf("ssh: %w", err)
		}
		attachable = append(attachable, agent)
	}
	return attachable, nil
}

// secretSources materializes secrets under the temp dir. Invalid entries
// are logged and skipped.
func secretSources(in *inputs.Inputs, opts DriverOptions) ([]secretsprovider.Source, error) {
	if len(in.Secrets) == 0 && len(in.SecretFiles) == 0 {
		return nil, nil
	}
	if opts.TempDir == nil {
		return nil, errors.New("secrets require a temp dir")
	}
	var sources []secretsprovider.Source
	add := func(values []string, fromFile bool) {
		for i, kvp := range values {
			id, path, err := opts.TempDir.WriteSecret(kvp, fromFile)
			if err != nil {
				opts.Logger.Info("skipping secret", "entry", i+1, "reason", err.Error())
				continue
			}
			sources = append(sources, secretsprovider.Source{ID: id, FilePath: path})
		}
	}
	add(in.Secrets, false)
	add(in.SecretFiles, true)
	return sources, nil
}

// parseSSH reads `default` or `id=path[,path...]`.
func parseSSH(spec string) sshprovider.AgentConfig {
	id, paths, ok := strings.Cut(spec, "=")
	cfg := sshprovider.AgentConfig{ID: id}
	if ok && paths != "" {
		cfg.Paths = strings.Split(paths, ",")
	}
	return cfg
}

func convertOutput(typ string, attrs map[string]string) (client.ExportEntry, error) {
	dest := attrs["dest"]
	entry := client.ExportEntry{Type: typ, Attrs: attrs}
	output, outputDir, err := resolveExporterDest(typ, dest, attrs)
	if err != nil {
		return client.ExportEntry{}, err
	}
	entry.Output = output
	entry.OutputDir = outputDir
	if (output != nil || outputDir != "") && dest != "" {
		delete(entry.Attrs, "dest")
	}
	return entry, nil
}

func resolveExporterDest(exporter, dest string, attrs map[string]string) (filesync.FileOutputFunc, string, error) {
	supportFile := false
	supportDir := false
	switch exporter {
	case client.ExporterLocal:
		supportDir = true
	case client.ExporterTar:
		supportFile = true
	case client.ExporterOCI, client.ExporterDocker:
		tarMode := true
		if v, ok := attrs["tar"]; ok {
			if parsed, err := strconv.ParseBool(v); err == nil {
				tarMode = parsed
			}
		}
		supportFile = tarMode
		supportDir = !tarMode
	}

	switch {
	case supportDir:
		if dest == "" {
			return nil, "", fmt.Errorf("output directory is required for %s exporter", exporter)
		}
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return nil, "", err
		}
		return nil, dest, nil
	case supportFile:
		if dest == "" {
			return nil, "", fmt.Errorf("destination file is required for %s exporter", exporter)
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return nil, "", err
		}
		return func(map[string]string) (io.WriteCloser, error) {
			return os.Create(dest)
		}, "", nil
	case dest != "":
		return nil, "", fmt.Errorf("exporter %s does not support dest", exporter)
	}
	return nil, "", nil
}

func ensureDirExists(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}

func splitDockerfile(path string) (string, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", "", fmt.Errorf("stat dockerfile: %w", err)
	}
	if info.IsDir() {
		return "", "", fmt.Errorf("dockerfile path %s is a directory", path)
	}
	return filepath.Dir(path), filepath.Base(path), nil
}
