package buildkit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/moby/buildkit/client"
)

// BuilderAddress returns the BuildKit address of a docker-container buildx builder.
func BuilderAddress(name string) string {
	return fmt.Sprintf("docker-container://buildx_buildkit_%s0", name)
}

type buildxRunner func(ctx context.Context, docker []string, logger logr.Logger, args ...string) error

// clientFactory dials BuildKit and, when fallbackBuilder is set, provisions
// that docker-container builder if the address does not answer.
type clientFactory struct {
	docker          []string
	fallbackBuilder string
	logger          logr.Logger
	dial            func(ctx context.Context, addr string) (*client.Client, error)
	run             buildxRunner
}

func newClientFactory(cfg SolveConfig) clientFactory {
	return clientFactory{
		docker:          cfg.Docker,
		fallbackBuilder: cfg.FallbackBuilder,
		logger:          cfg.Logger,
		dial:            dialBuildkit,
		run:             runDockerBuildx,
	}
}

func (f clientFactory) connect(ctx context.Context, addr string) (*client.Client, string, error) {
	c, err := f.dial(ctx, addr)
	if err == nil {
		return c, addr, nil
	}
	if f.fallbackBuilder == "" || !isDialError(err) {
		return nil, addr, fmt.Errorf("connect to buildkitd at %s: %w", addr, err)
	}
	fallbackAddr, fbErr := f.ensureBuilder(ctx)
	if fbErr != nil {
		return nil, addr, fmt.Errorf("connect to buildkitd at %s and fallback failed: %w", addr, errors.Join(err, fbErr))
	}
	c, err = f.dial(ctx, fallbackAddr)
	if err != nil {
		return nil, fallbackAddr, fmt.Errorf("connect to buildkitd at %s after fallback: %w", fallbackAddr, err)
	}
	return c, fallbackAddr, nil
}

// ensureBuilder creates the fallback builder when it does not exist and
// waits for it to boot.
func (f clientFactory) ensureBuilder(ctx context.Context) (string, error) {
	builder := f.fallbackBuilder
	f.logger.Info("buildkit endpoint unavailable, provisioning buildx builder", "builder", builder)
	if err := f.run(ctx, f.docker, f.logger, "inspect", builder); err != nil {
		if err := f.run(ctx, f.docker, f.logger, "create", "--name", builder, "--driver", "docker-container"); err != nil {
			return "", err
		}
	}
	if err := f.run(ctx, f.docker, f.logger, "inspect", "--bootstrap", builder); err != nil {
		return "", err
	}
	return BuilderAddress(builder), nil
}

func runDockerBuildx(ctx context.Context, docker []string, logger logr.Logger, args ...string) error {
	if len(docker) == 0 {
		docker = []string{"docker"}
	}
	argv := append(append(append([]string{}, docker[1:]...), "buildx"), args...)
	cmd := exec.CommandContext(ctx, docker[0], argv...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	if err := cmd.Run(); err != nil {
		if buf.Len() > 0 {
			logger.Info("docker buildx output", "args", strings.Join(args, " "), "output", strings.TrimSpace(buf.String()))
		}
		return fmt.Errorf("docker buildx %s: %w", strings.Join(args, " "), err)
	}
	return nil
}

func dialBuildkit(ctx context.Context, addr string) (*client.Client, error) {
	c, err := client.New(ctx, addr)
	if err != nil {
		return nil, err
	}
	if _, err := c.ListWorkers(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func isDialError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrNotExist) {
		return true
	}
	var sysErr *os.SyscallError
	if errors.As(err, &sysErr) {
		if sysErr.Err == syscall.ENOENT || sysErr.Err == syscall.ECONNREFUSED || sysErr.Err == syscall.EACCES {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	for _, sub := range []string{
		"no such file or directory",
		"connection refused",
		"error while dialing",
		"connect: permission denied",
	} {
		if strings.Contains(msg, sub) {
			return true
		}
	}
	return false
}
