// File: internal/actioninput/source.go
// Brief: Internal actioninput package implementation for 'source'.

// Package actioninput resolves step inputs the way the GitHub Actions runner
// hands them over (INPUT_<NAME> environment variables) and writes step
// outputs back to the runner. Local runs can layer an inputs file, action.yml
// defaults and a dotenv file underneath the environment.
package actioninput

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/example/buildaction/internal/inputlist"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to upper-cased input names.
const EnvPrefix = "INPUT"

var (
	// ErrInvalidBoolean is returned when a boolean input is not a YAML 1.2 core schema boolean.
	ErrInvalidBoolean = errors.New("input does not meet YAML 1.2 \"Core Schema\" specification")
	// ErrRequiredInput is returned when an input marked required in action.yml is empty.
	ErrRequiredInput = errors.New("input required and not supplied")
)

// Options selects the optional layers below the environment.
type Options struct {
	// InputsFile is a YAML, JSON or TOML file mapping input names to values.
	InputsFile string
	// ActionFile is an action.yml whose input defaults apply last.
	ActionFile string
	// EnvFile is a dotenv file loaded into the process environment without overriding it.
	EnvFile string
}

// Source looks up input values. Precedence: environment, inputs file, action.yml default.
type Source struct {
	v        *viper.Viper
	required []string
}

// ActionMetadata is the subset of action.yml the source understands.
type ActionMetadata struct {
	Name        string                   `yaml:"name"`
	Description string                   `yaml:"description"`
	Inputs      map[string]InputMetadata `yaml:"inputs"`
}

// InputMetadata describes one declared input.
type InputMetadata struct {
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
	Default     string `yaml:"default"`
}

// New builds a Source from the environment and the optional layers in opts.
func New(opts Options) (*Source, error) {
	if path := strings.TrimSpace(opts.EnvFile); path != "" {
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", path, err)
		}
	}
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(" ", "_"))
	// An input the runner sets to "" is empty, not missing.
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()
	s := &Source{v: v}
	if path := strings.TrimSpace(opts.ActionFile); path != "" {
		meta, err := LoadActionMetadata(path)
		if err != nil {
			return nil, err
		}
		s.applyDefaults(meta)
	}
	if path := strings.TrimSpace(opts.InputsFile); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read inputs file %s: %w", path, err)
		}
	}
	return s, nil
}

// LoadActionMetadata parses an action.yml file.
func LoadActionMetadata(path string) (*ActionMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read action metadata: %w", err)
	}
	var meta ActionMetadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse action metadata %s: %w", path, err)
	}
	return &meta, nil
}

func (s *Source) applyDefaults(meta *ActionMetadata) {
	if meta == nil {
		return
	}
	for name, input := range meta.Inputs {
		key := normalizeName(name)
		if input.Required {
			s.required = append(s.required, key)
		}
		// Expressions are evaluated by the runner; there is nothing to resolve locally.
		if input.Default == "" || strings.Contains(input.Default, "${{") {
			continue
		}
		s.v.SetDefault(key, input.Default)
	}
}

// Get returns the whitespace-trimmed value of an input, or "" when unset.
func (s *Source) Get(name string) string {
	return strings.TrimSpace(stringValue(s.v.Get(normalizeName(name))))
}

// GetBool parses a boolean input. An unset input is false.
func (s *Source) GetBool(name string) (bool, error) {
	raw := s.Get(name)
	switch raw {
	case "":
		return false, nil
	case "true", "True", "TRUE":
		return true, nil
	case "false", "False", "FALSE":
		return false, nil
	}
	return false, fmt.Errorf("%w: %s (supported: true | True | TRUE | false | False | FALSE)", ErrInvalidBoolean, name)
}

// GetList parses a list input with the given separator mode.
func (s *Source) GetList(name string, mode inputlist.Mode) []string {
	return inputlist.Parse(s.Get(name), mode)
}

// CheckRequired reports the first input declared required in action.yml that has no value.
func (s *Source) CheckRequired() error {
	for _, name := range s.required {
		if s.Get(name) == "" {
			return fmt.Errorf("%w: %s", ErrRequiredInput, name)
		}
	}
	return nil
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func stringValue(raw any) string {
	switch val := raw.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, stringValue(item))
		}
		return strings.Join(parts, "\n")
	case []string:
		return strings.Join(val, "\n")
	default:
		return fmt.Sprintf("%v", val)
	}
}
