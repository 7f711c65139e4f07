// File: internal/inputlist/inputlist.go
// Brief: Internal inputlist package implementation for 'inputlist'.

// Package inputlist turns a single multi-line action input into an ordered
// list of values. Values are separated by newlines and, in plain mode, by
// commas. In quoted mode a line starting with a double quote opens a block
// that may span several lines (secret payloads, PEM files) and ends at the
// first line finishing with an unescaped quote; a doubled quote inside the
// block stands for one literal quote.
package inputlist

import "strings"

// Mode selects how list separators are interpreted.
type Mode int

const (
	// ModePlain splits every line on commas; quotes are ordinary characters.
	ModePlain Mode = iota
	// ModeQuoted keeps each line whole and understands quoted multi-line blocks.
	ModeQuoted
)

func (m Mode) String() string {
	switch m {
	case ModePlain:
		return "plain"
	case ModeQuoted:
		return "quoted"
	default:
		return "unknown"
	}
}

// Parse splits raw into its values. It never fails: an unterminated quoted
// block yields whatever it accumulated up to the end of input.
func Parse(raw string, mode Mode) []string {
	values := []string{}
	normalized := normalizeNewlines(raw)
	if strings.TrimSpace(normalized) == "" {
		return values
	}
	var block *quotedBlock
	for _, line := range strings.Split(normalized, "\n") {
		if block != nil {
			if block.add(line) {
				values = append(values, block.value())
				block = nil
			}
			continue
		}
		if mode != ModeQuoted {
			values = appendFields(values, line)
			continue
		}
		trimmed := strings.TrimLeft(line, " \t")
		if strings.HasPrefix(trimmed, `"`) {
			opened := &quotedBlock{}
			if opened.add(trimmed[1:]) {
				values = append(values, opened.value())
			} else {
				block = opened
			}
			continue
		}
		if value := strings.TrimSpace(line); value != "" {
			values = append(values, value)
		}
	}
	if block != nil {
		values = append(values, block.value())
	}
	return values
}

func normalizeNewlines(raw string) string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	return strings.ReplaceAll(raw, "\r", "\n")
}

func appendFields(values []string, line string) []string {
	for _, field := range strings.Split(line, ",") {
		if value := strings.TrimSpace(field); value != "" {
			values = append(values, value)
		}
	}
	return values
}

type quotedBlock struct {
	lines []string
}

// add appends line to the block and reports whether it carried the closing quote.
func (b *quotedBlock) add(line string) bool {
	end := strings.TrimRight(line, " \t")
	if closesBlock(end) {
		b.lines = append(b.lines, end[:len(end)-1])
		return true
	}
	b.lines = append(b.lines, line)
	return false
}

func (b *quotedBlock) value() string {
	return strings.ReplaceAll(strings.Join(b.lines, "\n"), `""`, `"`)
}

// closesBlock reports whether line ends with a quote that is not half of a "" pair.
func closesBlock(line string) bool {
	run := 0
	for i := len(line) - 1; i >= 0 && line[i] == '"'; i-- {
		run++
	}
	return run%2 == 1
}
