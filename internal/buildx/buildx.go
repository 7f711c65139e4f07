// File: internal/buildx/buildx.go
// Brief: Internal buildx package implementation for 'buildx'.

// Package buildx wraps the docker buildx CLI: version detection and gating,
// the private scratch directory holding iidfile, metadata and secret files,
// and the helpers that inspect parsed inputs before they become flags.
package buildx

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/example/buildaction/internal/csvutil"
	"github.com/mattn/go-shellwords"
	"github.com/pkg/errors"
)

// DefaultDockerCommand is used when no docker command override is configured.
const DefaultDockerCommand = "docker"

// GitAuthTokenSecret is the secret id BuildKit uses to authenticate git contexts.
const GitAuthTokenSecret = "GIT_AUTH_TOKEN"

var versionPattern = regexp.MustCompile(`\sv?([0-9a-f]{7}|[0-9.]+)`)

var commitPattern = regexp.MustCompile(`^[0-9a-f]{7}$`)

// DockerCommand splits a docker command line such as "sudo docker" into argv.
func DockerCommand(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return []string{DefaultDockerCommand}, nil
	}
	args, err := shellwords.Parse(raw)
	if err != nil {
		return nil, errors.Wrap(err, "parse docker command")
	}
	if len(args) == 0 {
		return nil, errors.New("docker command must contain at least one argument")
	}
	return args, nil
}

// IsAvailable reports whether the buildx plugin answers.
func IsAvailable(ctx context.Context, docker []string) bool {
	cmd := command(ctx, docker, "buildx")
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run() == nil
}

// Version returns the installed buildx version.
func Version(ctx context.Context, docker []string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := command(ctx, docker, "buildx", "version")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", errors.Errorf("buildx version: %s", msg)
		}
		return "", errors.Wrap(err, "buildx version")
	}
	return ParseVersion(stdout.String())
}

// ParseVersion extracts the version from `docker buildx version` output, for
// example "github.com/docker/buildx v0.6.3 266c0eac..." yields "0.6.3".
func ParseVersion(out string) (string, error) {
	matches := versionPattern.FindStringSubmatch(out)
	if len(matches) < 2 {
		return "", errors.Errorf("cannot parse buildx version from %q", strings.TrimSpace(out))
	}
	return matches[1], nil
}

// Satisfies reports whether version meets constraint. Development builds
// report a short commit instead of a release and satisfy every constraint.
func Satisfies(version, constraint string) bool {
	if commitPattern.MatchString(version) {
		return true
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false
	}
	return c.Check(v)
}

// HasGitAuthToken reports whether one of the secrets already provides GIT_AUTH_TOKEN.
func HasGitAuthToken(secrets []string) bool {
	for _, secret := range secrets {
		if strings.HasPrefix(secret, GitAuthTokenSecret+"=") {
			return true
		}
	}
	return false
}

// IsLocalOrTarExporter reports whether any output writes to the local filesystem.
func IsLocalOrTarExporter(outputs []string) bool {
	for _, output := range outputs {
		fields, err := csvutil.SplitFields(output)
		if err != nil {
			continue
		}
		for _, field := range fields {
			key, value, ok := strings.Cut(field, "=")
			if !ok || strings.ToLower(strings.TrimSpace(key)) != "type" {
				continue
			}
			switch strings.TrimSpace(value) {
			case "local", "tar":
				return true
			}
		}
	}
	return false
}

func command(ctx context.Context, docker []string, args ...string) *exec.Cmd {
	if len(docker) == 0 {
		docker = []string{DefaultDockerCommand}
	}
	argv := append(append([]string{}, docker[1:]...), args...)
	cmd := exec.CommandContext(ctx, docker[0], argv...)
	cmd.Env = os.Environ()
	return cmd
}
