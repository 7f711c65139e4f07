package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-logr/logr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	crzap "sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// ParseLevel maps a --log-level value onto a zap level.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q (expected debug, info, warn, or error)", level)
	}
}

// New returns a logger writing to out at the given level. Debug switches to
// the development encoder.
func New(level string, out io.Writer) (logr.Logger, error) {
	zapLevel, err := ParseLevel(level)
	if err != nil {
		return logr.Logger{}, err
	}
	opts := crzap.Options{Development: zapLevel == zapcore.DebugLevel}
	atomic := zap.NewAtomicLevelAt(zapLevel)
	opts.Level = &atomic
	if out != nil {
		opts.DestWriter = out
	}
	return crzap.New(crzap.UseFlagOptions(&opts)), nil
}
