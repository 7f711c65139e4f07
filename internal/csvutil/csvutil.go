// File: internal/csvutil/csvutil.go
// Brief: Internal csvutil package implementation for 'csvutil'.

// Package csvutil parses the comma-separated key=value attribute lists used by
// cache, output and secret specs (type=local,dest=out).

package csvutil

import (
	"strings"

	csvvalue "github.com/tonistiigi/go-csvvalue"
)

// SplitFields parses a comma-separated attribute list using CSV quoting rules.
func SplitFields(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	fields, err := csvvalue.Fields(raw, nil)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		if field = strings.TrimSpace(field); field != "" {
			out = append(out, field)
		}
	}
	return out, nil
}

// KeyValues parses raw into lower-cased keys and trimmed values. A field
// without '=' is recorded with an empty value.
func KeyValues(raw string) (map[string]string, error) {
	fields, err := SplitFields(raw)
	if err != nil {
		return nil, err
	}
	attrs := make(map[string]string, len(fields))
	for _, field := range fields {
		key, value, ok := strings.Cut(field, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		if !ok {
			attrs[key] = ""
			continue
		}
		attrs[key] = strings.TrimSpace(value)
	}
	return attrs, nil
}
