package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/example/buildaction/internal/envcatalog"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

type envRow struct {
	Category    string `json:"category" yaml:"category"`
	Variable    string `json:"variable" yaml:"variable"`
	Value       string `json:"value,omitempty" yaml:"value,omitempty"`
	Description string `json:"description" yaml:"description"`
}

func envRows(showAll bool) []envRow {
	rows := envcatalog.Catalog()
	out := make([]envRow, 0, len(rows))
	for _, row := range rows {
		if row.Internal && !showAll {
			continue
		}
		value := ""
		if !row.Dynamic {
			value = strings.TrimSpace(os.Getenv(row.Name))
		}
		out = append(out, envRow{
			Category:    row.Category,
			Variable:    row.Name,
			Value:       value,
			Description: row.Description,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Variable < out[j].Variable
	})
	return out
}

func filterEnvRows(rows []envRow, category string, onlySet bool) []envRow {
	category = strings.TrimSpace(category)
	out := rows[:0]
	for _, row := range rows {
		if category != "" && !strings.EqualFold(row.Category, category) {
			continue
		}
		if onlySet && strings.TrimSpace(row.Value) == "" {
			continue
		}
		out = append(out, row)
	}
	return out
}

// writeEnvTable pads columns by display width so values with wide runes stay aligned.
func writeEnvTable(w io.Writer, rows []envRow) error {
	header := []string{"CATEGORY", "VARIABLE", "VALUE", "DESCRIPTION"}
	cells := make([][]string, 0, len(rows)+1)
	cells = append(cells, header)
	for _, row := range rows {
		cells = append(cells, []string{row.Category, row.Variable, row.Value, row.Description})
	}
	widths := make([]int, len(header)-1)
	for _, line := range cells {
		for i := range widths {
			if n := runewidth.StringWidth(line[i]); n > widths[i] {
				widths[i] = n
			}
		}
	}
	for _, line := range cells {
		var b strings.Builder
		for i, cell := range line {
			if i < len(widths) {
				b.WriteString(runewidth.FillRight(cell, widths[i]+2))
				continue
			}
			b.WriteString(cell)
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(b.String(), " ")); err != nil {
			return err
		}
	}
	return nil
}

func newEnvCommand() *cobra.Command {
	var format string
	var showAll bool
	var onlySet bool
	var category string

	cmd := &cobra.Command{
		Use:   "env",
		Short: "Show environment variables used by buildaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := filterEnvRows(envRows(showAll), category, onlySet)

			switch strings.ToLower(strings.TrimSpace(format)) {
			case "", "table":
				return writeEnvTable(cmd.OutOrStdout(), rows)
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			case "yaml", "yml":
				b, err := yaml.Marshal(rows)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(b)
				return err
			default:
				return fmt.Errorf("unsupported --format %q (expected table, json, or yaml)", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table, json, yaml")
	cmd.Flags().BoolVar(&showAll, "all", false, "Include internal variables")
	cmd.Flags().BoolVar(&onlySet, "set", false, "Show only variables with a non-empty value")
	cmd.Flags().StringVar(&category, "category", "", "Filter to a category (case-insensitive)")
	return cmd
}
