package secrets

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadRules compiles the default rules merged with the optional file at path
// (YAML, or JSON by extension).
func LoadRules(path string) (Rules, error) {
	cfg := DefaultConfig()
	if path = strings.TrimSpace(path); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Rules{}, err
		}
		override, err := parseConfig(path, raw)
		if err != nil {
			return Rules{}, err
		}
		cfg = MergeConfig(cfg, override)
	}
	return Compile(cfg)
}

func parseConfig(name string, raw []byte) (Config, error) {
	var cfg Config
	if len(strings.TrimSpace(string(raw))) == 0 {
		return cfg, nil
	}
	if strings.EqualFold(filepath.Ext(name), ".json") {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse build-arg rules %s: %w", name, err)
		}
		return cfg, nil
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse build-arg rules %s: %w", name, err)
	}
	return cfg, nil
}
