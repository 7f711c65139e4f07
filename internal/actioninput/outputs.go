package actioninput

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
)

// OutputEnv names the file the runner reads step outputs from.
const OutputEnv = "GITHUB_OUTPUT"

// Outputs records step outputs.
type Outputs struct {
	path      string
	fallback  io.Writer
	delimiter func() string
}

// NewOutputs writes to the GITHUB_OUTPUT file when getenv reports one and to
// fallback with the legacy set-output command otherwise.
func NewOutputs(getenv func(string) string, fallback io.Writer) *Outputs {
	if getenv == nil {
		getenv = os.Getenv
	}
	return &Outputs{
		path:     strings.TrimSpace(getenv(OutputEnv)),
		fallback: fallback,
		delimiter: func() string {
			return "ghadelimiter_" + uuid.NewString()
		},
	}
}

// Set records one output value. Multi-line values are supported.
func (o *Outputs) Set(name, value string) error {
	if o.path == "" {
		if o.fallback == nil {
			return nil
		}
		_, err := fmt.Fprintf(o.fallback, "::set-output name=%s::%s\n", escapeProperty(name), escapeData(value))
		return err
	}
	delim := o.delimiter()
	if strings.Contains(name, delim) {
		return fmt.Errorf("unexpected input: name should not contain the delimiter %q", delim)
	}
	if strings.Contains(value, delim) {
		return fmt.Errorf("unexpected input: value should not contain the delimiter %q", delim)
	}
	f, err := os.OpenFile(o.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", OutputEnv, err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "%s<<%s\n%s\n%s\n", name, delim, value, delim); err != nil {
		return fmt.Errorf("write output %s: %w", name, err)
	}
	return nil
}

func escapeData(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	s = strings.ReplaceAll(s, "\r", "%0D")
	return strings.ReplaceAll(s, "\n", "%0A")
}

func escapeProperty(s string) string {
	s = escapeData(s)
	s = strings.ReplaceAll(s, ":", "%3A")
	return strings.ReplaceAll(s, ",", "%2C")
}
