// Package secrets flags build-args that carry credentials, which end up in
// the image history, so they can be moved to BuildKit secrets.
package secrets

import (
	"fmt"
	"strings"
)

type Mode string

const (
	ModeWarn  Mode = "warn"
	ModeBlock Mode = "block"
	ModeOff   Mode = "off"
)

// ParseMode accepts warn, block or off; empty means warn.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeWarn, nil
	case ModeWarn, ModeBlock, ModeOff:
		return m, nil
	default:
		return "", fmt.Errorf("unknown build-arg check mode %q (expected warn, block or off)", s)
	}
}

type Finding struct {
	Severity Severity `json:"severity"`
	Rule     string   `json:"rule"`
	Message  string   `json:"message"`
	Key      string   `json:"key"`
	Match    string   `json:"match,omitempty"`
}

func (f Finding) String() string {
	if f.Match != "" {
		return fmt.Sprintf("%s: %s (%s, matched %s)", f.Key, f.Message, f.Rule, f.Match)
	}
	return fmt.Sprintf("%s: %s (%s)", f.Key, f.Message, f.Rule)
}

type Report struct {
	Mode     Mode      `json:"mode"`
	Blocked  bool      `json:"blocked"`
	Findings []Finding `json:"findings,omitempty"`
}

// Check runs rules over KEY=VALUE build-args. Entries without a value are
// only matched by name rules.
func (r Rules) Check(buildArgs []string, mode Mode) Report {
	report := Report{Mode: mode}
	if mode == ModeOff {
		return report
	}
	for _, raw := range buildArgs {
		key, value, _ := strings.Cut(strings.TrimSpace(raw), "=")
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		for _, rule := range r.rules {
			var f Finding
			switch {
			case rule.Target == TargetName && rule.re.MatchString(key):
				f = Finding{Severity: rule.Severity, Rule: rule.ID, Message: rule.Message, Key: key}
			case rule.Target == TargetValue && value != "" && rule.re.MatchString(value):
				f = Finding{Severity: rule.Severity, Rule: rule.ID, Message: rule.Message, Key: key, Match: Redact(rule.re.FindString(value))}
			default:
				continue
			}
			if f.Message == "" {
				f.Message = "build-arg matched a secrets rule"
			}
			if f.Severity == SeverityBlock && mode == ModeBlock {
				report.Blocked = true
			}
			report.Findings = append(report.Findings, f)
		}
	}
	return report
}

// Redact keeps the first and last three characters of long values.
func Redact(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if len(v) <= 8 {
		return "REDACTED"
	}
	return v[:3] + "..." + v[len(v)-3:]
}
