package secrets

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Target selects which half of a KEY=VALUE build-arg a rule inspects.
type Target string

const (
	TargetName  Target = "name"
	TargetValue Target = "value"
)

type Severity string

const (
	SeverityWarn  Severity = "warn"
	SeverityBlock Severity = "block"
)

type Rule struct {
	ID       string   `json:"id" yaml:"id"`
	Enabled  *bool    `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Severity Severity `json:"severity" yaml:"severity"`
	Target   Target   `json:"target" yaml:"target"`
	Regex    string   `json:"regex" yaml:"regex"`
	Message  string   `json:"message,omitempty" yaml:"message,omitempty"`
}

type Config struct {
	Rules []Rule `json:"rules" yaml:"rules"`
}

type compiledRule struct {
	Rule
	re *regexp.Regexp
}

// Rules is a compiled, ID-ordered rule set.
type Rules struct {
	rules []compiledRule
}

func DefaultConfig() Config {
	return Config{
		Rules: []Rule{
			{
				ID:       "arg_name_suspicious",
				Severity: SeverityWarn,
				Target:   TargetName,
				Regex:    `(?i)(token|secret|password|passwd|api[_-]?key|private[_-]?key|credential)`,
				Message:  "build-arg name looks like a secret; pass it through the secrets input instead",
			},
			{
				ID:       "arg_value_private_key",
				Severity: SeverityBlock,
				Target:   TargetValue,
				Regex:    `-----BEGIN ([A-Z ]+ )?PRIVATE KEY-----`,
				Message:  "private key material in a build-arg",
			},
			{
				ID:       "arg_value_jwt",
				Severity: SeverityWarn,
				Target:   TargetValue,
				Regex:    `\beyJ[a-zA-Z0-9_-]{10,}\.[a-zA-Z0-9_-]{10,}\.[a-zA-Z0-9_-]{10,}\b`,
				Message:  "JWT-like token in a build-arg",
			},
			{
				ID:       "arg_value_github_token",
				Severity: SeverityBlock,
				Target:   TargetValue,
				Regex:    `\b(ghp|gho|ghu|ghs|ghr)_[A-Za-z0-9]{20,}\b`,
				Message:  "GitHub token in a build-arg",
			},
			{
				ID:       "arg_value_aws_access_key",
				Severity: SeverityBlock,
				Target:   TargetValue,
				Regex:    `\bAKIA[0-9A-Z]{16}\b`,
				Message:  "AWS access key in a build-arg",
			},
		},
	}
}

// MergeConfig replaces base rules by ID with the override ones.
func MergeConfig(base, override Config) Config {
	byID := map[string]Rule{}
	for _, r := range append(append([]Rule{}, base.Rules...), override.Rules...) {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			continue
		}
		r.ID = id
		byID[id] = r
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := Config{Rules: make([]Rule, 0, len(ids))}
	for _, id := range ids {
		out.Rules = append(out.Rules, byID[id])
	}
	return out
}

func Compile(cfg Config) (Rules, error) {
	var out Rules
	for _, r := range cfg.Rules {
		if r.Enabled != nil && !*r.Enabled {
			continue
		}
		switch r.Target {
		case TargetName, TargetValue:
		default:
			return Rules{}, fmt.Errorf("rule %s: unknown target %q", r.ID, r.Target)
		}
		switch r.Severity {
		case SeverityWarn, SeverityBlock:
		case "":
			r.Severity = SeverityWarn
		default:
			return Rules{}, fmt.Errorf("rule %s: unknown severity %q", r.ID, r.Severity)
		}
		re, err := regexp.Compile(r.Regex)
		if err != nil {
			return Rules{}, fmt.Errorf("rule %s: invalid regex: %w", r.ID, err)
		}
		out.rules = append(out.rules, compiledRule{Rule: r, re: re})
	}
	sort.Slice(out.rules, func(i, j int) bool { return out.rules[i].ID < out.rules[j].ID })
	return out, nil
}

// Len reports how many rules are enabled.
func (r Rules) Len() int { return len(r.rules) }
