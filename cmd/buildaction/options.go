package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/example/buildaction/internal/actioninput"
	"github.com/example/buildaction/internal/buildx"
	"github.com/example/buildaction/internal/inputs"
	"github.com/example/buildaction/internal/logging"
	"github.com/example/buildaction/internal/secrets"
	"github.com/fatih/color"
	"github.com/go-logr/logr"
	"github.com/mitchellh/go-homedir"
)

type rootOptions struct {
	logLevel   string
	inputsFile string
	actionFile string
	envFile    string
	docker     string
}

func (o *rootOptions) logger(out io.Writer) (logr.Logger, error) {
	return logging.New(o.logLevel, out)
}

// loadInputs reads every step input through the layered source and returns
// them together with the default git context they were resolved against.
func (o *rootOptions) loadInputs() (*inputs.Inputs, string, error) {
	src, err := actioninput.New(actioninput.Options{
		InputsFile: expandPath(o.inputsFile),
		ActionFile: expandPath(o.actionFile),
		EnvFile:    expandPath(o.envFile),
	})
	if err != nil {
		return nil, "", err
	}
	if err := src.CheckRequired(); err != nil {
		return nil, "", err
	}
	defaultContext := inputs.DefaultContext(os.Getenv)
	in, err := inputs.Load(src, defaultContext)
	if err != nil {
		return nil, "", err
	}
	return in, defaultContext, nil
}

// buildxVersion returns override when set and asks buildx otherwise. A
// failed lookup is reported as a warning and yields "".
func (o *rootOptions) buildxVersion(ctx context.Context, override string, stderr io.Writer) string {
	if override != "" {
		return override
	}
	docker, err := buildx.DockerCommand(o.docker)
	if err != nil {
		warnf(stderr, "cannot parse docker command: %v", err)
		return ""
	}
	version, err := buildx.Version(ctx, docker)
	if err != nil {
		warnf(stderr, "cannot detect buildx version: %v", err)
		return ""
	}
	return version
}

var errSecretBuildArg = errors.New("build-args carry secrets")

// checkBuildArgs reports build-args that look like credentials. In block mode
// a block-severity finding fails the command.
func checkBuildArgs(in *inputs.Inputs, mode, rulesPath string, stderr io.Writer) error {
	m, err := secrets.ParseMode(mode)
	if err != nil || m == secrets.ModeOff {
		return err
	}
	rules, err := secrets.LoadRules(expandPath(rulesPath))
	if err != nil {
		return fmt.Errorf("build-arg rules: %w", err)
	}
	report := rules.Check(in.BuildArgs, m)
	for _, f := range report.Findings {
		warnf(stderr, "%s", f)
	}
	if report.Blocked {
		return errSecretBuildArg
	}
	return nil
}

// expandPath resolves a leading ~ in path flags; values the shell did not
// expand arrive that way from config files and BUILDACTION_* variables.
func expandPath(path string) string {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return path
	}
	return expanded
}

var warnColor = color.New(color.FgYellow)

func warnf(out io.Writer, format string, args ...any) {
	warnColor.Fprintf(out, "Warning: "+format+"\n", args...)
}
