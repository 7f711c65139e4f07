package buildkit

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/containerd/platforms"
	"github.com/distribution/reference"
	"github.com/docker/cli/cli/config/configfile"
	"github.com/example/buildaction/internal/buildx"
	"github.com/example/buildaction/internal/csvutil"
	"github.com/example/buildaction/internal/inputs"
	"github.com/go-logr/logr"
	"github.com/moby/buildkit/client"
	"github.com/moby/buildkit/exporter/containerimage/exptypes"
)

// ErrUnsupportedInput is returned for inputs that only make sense with buildx.
var ErrUnsupportedInput = errors.New("input not supported by the buildkit driver")

// DriverOptions carries what SolveOptions needs besides the inputs.
type DriverOptions struct {
	// TempDir receives secret files.
	TempDir      *buildx.TempDir
	DockerConfig *configfile.ConfigFile
	Logger       logr.Logger
}

// DefaultBuilderAddress returns the best-effort rootless BuildKit socket.
func DefaultBuilderAddress() string {
	if v := os.Getenv("BUILDACTION_BUILDKIT_HOST"); v != "" {
		return v
	}
	if v := os.Getenv("BUILDKIT_HOST"); v != "" {
		return v
	}
	if runtime.GOOS == "windows" {
		return "npipe:////./pipe/buildkitd"
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return "unix://" + filepath.Join(dir, "buildkit", "buildkitd.sock")
	}
	if u, err := user.Current(); err == nil && u.Uid != "" {
		return fmt.Sprintf("unix:///run/user/%s/buildkit/buildkitd.sock", u.Uid)
	}
	return "unix:///run/user/1000/buildkit/buildkitd.sock"
}

// SolveOptions translates step inputs into a dockerfile.v0 solve.
func SolveOptions(in *inputs.Inputs, opts DriverOptions) (client.SolveOpt, error) {
	if err := checkSupported(in); err != nil {
		return client.SolveOpt{}, err
	}
	contextDir, err := localContext(in.Context)
	if err != nil {
		return client.SolveOpt{}, err
	}
	dockerfilePath := in.File
	if dockerfilePath == "" {
		dockerfilePath = filepath.Join(contextDir, "Dockerfile")
	}
	if dockerfilePath, err = filepath.Abs(dockerfilePath); err != nil {
		return client.SolveOpt{}, fmt.Errorf("resolve dockerfile: %w", err)
	}
	dockerfileDir, dockerfileName, err := splitDockerfile(dockerfilePath)
	if err != nil {
		return client.SolveOpt{}, err
	}

	attrs, err := frontendAttrs(in, dockerfileName)
	if err != nil {
		return client.SolveOpt{}, err
	}

	solveOpt := client.SolveOpt{
		Frontend:      "dockerfile.v0",
		FrontendAttrs: attrs,
		LocalDirs: map[string]string{
			"context":    contextDir,
			"dockerfile": dockerfileDir,
		},
	}

	cacheImports, err := cacheEntries(in.CacheFrom)
	if err != nil {
		return client.SolveOpt{}, fmt.Errorf("cache-from: %w", err)
	}
	if in.NoCache && len(cacheImports) > 0 {
		opts.Logger.Info("ignoring cache imports", "reason", "no-cache is set")
	} else {
		solveOpt.CacheImports = cacheImports
	}
	if solveOpt.CacheExports, err = cacheEntries(in.CacheTo); err != nil {
		return client.SolveOpt{}, fmt.Errorf("cache-to: %w", err)
	}

	if solveOpt.Exports, err = exportEntries(in); err != nil {
		return client.SolveOpt{}, err
	}

	if solveOpt.Session, err = sessionAttachables(in, opts); err != nil {
		return client.SolveOpt{}, err
	}
	return solveOpt, nil
}

func checkSupported(in *inputs.Inputs) error {
	switch {
	case in.Load:
		return fmt.Errorf("load: %w", ErrUnsupportedInput)
	case len(in.Allow) > 0:
		return fmt.Errorf("allow: %w", ErrUnsupportedInput)
	}
	return nil
}

func localContext(raw string) (string, error) {
	if raw == "" {
		raw = "."
	}
	if strings.Contains(raw, "://") || strings.HasPrefix(raw, "git@") {
		return "", fmt.Errorf("context %s: remote contexts require buildx", raw)
	}
	abs, err := filepath.Abs(raw)
	if err != nil {
		return "", fmt.Errorf("resolve context: %w", err)
	}
	if err := ensureDirExists(abs); err != nil {
		return "", fmt.Errorf("context %s: %w", abs, err)
	}
	return abs, nil
}

func frontendAttrs(in *inputs.Inputs, dockerfileName string) (map[string]string, error) {
	attrs := map[string]string{"filename": dockerfileName}
	if in.Target != "" {
		attrs["target"] = in.Target
	}
	if len(in.Platforms) > 0 {
		normalized, err := NormalizePlatforms(in.Platforms)
		if err != nil {
			return nil, err
		}
		attrs["platform"] = strings.Join(normalized, ",")
	}
	for _, arg := range in.BuildArgs {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			env, found := os.LookupEnv(key)
			if !found {
				continue
			}
			value = env
		}
		attrs["build-arg:"+key] = value
	}
	for _, label := range in.Labels {
		key, value, _ := strings.Cut(label, "=")
		attrs["label:"+key] = value
	}
	if in.NoCache {
		attrs["no-cache"] = ""
	}
	if in.Pull {
		attrs["image-resolve-mode"] = "pull"
	}
	if len(in.AddHosts) > 0 {
		attrs["add-hosts"] = strings.Join(in.AddHosts, ",")
	}
	if in.Network != "" {
		attrs["force-network-mode"] = in.Network
	}
	if in.ShmSize != "" {
		attrs["shm-size"] = in.ShmSize
	}
	if len(in.Ulimit) > 0 {
		attrs["ulimit"] = strings.Join(in.Ulimit, ",")
	}
	if in.CgroupParent != "" {
		attrs["cgroup-parent"] = in.CgroupParent
	}
	return attrs, nil
}

// NormalizePlatforms parses and normalizes platform specifiers, dropping
// duplicates while preserving order.
func NormalizePlatforms(values []string) ([]string, error) {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		spec, err := platforms.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("platform %q: %w", v, err)
		}
		p := platforms.Format(platforms.Normalize(spec))
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

// parseCacheEntry accepts either a CSV spec (type=...,key=value) or a bare
// registry reference.
func parseCacheEntry(raw string) (client.CacheOptionsEntry, error) {
	if !strings.Contains(raw, "=") {
		return client.CacheOptionsEntry{Type: "registry", Attrs: map[string]string{"ref": raw}}, nil
	}
	attrs, err := csvutil.KeyValues(raw)
	if err != nil {
		return client.CacheOptionsEntry{}, err
	}
	typ := attrs["type"]
	if typ == "" {
		return client.CacheOptionsEntry{}, fmt.Errorf("%s: type is required", raw)
	}
	delete(attrs, "type")
	return client.CacheOptionsEntry{Type: typ, Attrs: attrs}, nil
}

func cacheEntries(values []string) ([]client.CacheOptionsEntry, error) {
	var entries []client.CacheOptionsEntry
	for _, raw := range values {
		entry, err := parseCacheEntry(raw)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func exportEntries(in *inputs.Inputs) ([]client.ExportEntry, error) {
	names, err := imageNames(in.Tags)
	if err != nil {
		return nil, err
	}
	var exports []client.ExportEntry
	for _, raw := range in.Outputs {
		attrs, err := csvutil.KeyValues(raw)
		if err != nil {
			return nil, fmt.Errorf("output %s: %w", raw, err)
		}
		typ := attrs["type"]
		if typ == "" {
			return nil, fmt.Errorf("output %s: type is required", raw)
		}
		delete(attrs, "type")
		if typ == "registry" {
			typ = client.ExporterImage
			attrs[string(exptypes.OptKeyPush)] = "true"
		}
		if typ == client.ExporterImage {
			if attrs[string(exptypes.OptKeyName)] == "" && names != "" {
				attrs[string(exptypes.OptKeyName)] = names
			}
			if in.Push {
				attrs[string(exptypes.OptKeyPush)] = "true"
			}
		}
		entry, err := convertOutput(typ, attrs)
		if err != nil {
			return nil, err
		}
		exports = append(exports, entry)
	}
	if len(in.Outputs) == 0 && (names != "" || in.Push) {
		if names == "" {
			return nil, errors.New("at least one tag is required when pushing")
		}
		attrs := map[string]string{string(exptypes.OptKeyName): names}
		if in.Push {
			attrs[string(exptypes.OptKeyPush)] = "true"
		}
		exports = append(exports, client.ExportEntry{Type: client.ExporterImage, Attrs: attrs})
	}
	return exports, nil
}

// imageNames validates tags and joins them into an image exporter name.
func imageNames(tags []string) (string, error) {
	for _, tag := range tags {
		if _, err := reference.ParseNormalizedNamed(tag); err != nil {
			return "", fmt.Errorf("invalid tag %q: %w", tag, err)
		}
	}
	return strings.Join(tags, ","), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
