package envcatalog

type VarInfo struct {
	Category    string
	Name        string
	Description string
	Dynamic     bool
	Internal    bool
}

func Catalog() []VarInfo {
	return []VarInfo{
		{
			Category:    "Config",
			Name:        "BUILDACTION_CONFIG",
			Description: "Path to the buildaction config file.",
		},
		{
			Category:    "Config",
			Name:        "BUILDACTION_<FLAG>",
			Dynamic:     true,
			Description: "Set any buildaction CLI flag via environment (hyphens become underscores). Example: BUILDACTION_LOG_LEVEL=debug.",
		},
		{
			Category:    "Inputs",
			Name:        "INPUT_<NAME>",
			Dynamic:     true,
			Description: "Step input value (upper-cased name, spaces become underscores). Example: INPUT_BUILD-ARGS.",
		},
		{
			Category:    "Inputs",
			Name:        "GITHUB_SERVER_URL",
			Description: "Server used to derive the default git context (defaults to https://github.com).",
		},
		{
			Category:    "Inputs",
			Name:        "GITHUB_REPOSITORY",
			Description: "owner/name used to derive the default git context.",
		},
		{
			Category:    "Inputs",
			Name:        "GITHUB_REF",
			Description: "Git ref appended to the default git context.",
		},
		{
			Category:    "Outputs",
			Name:        "GITHUB_OUTPUT",
			Description: "File receiving step outputs (imageid, digest, metadata). Outputs go to stdout when unset.",
		},
		{
			Category:    "Output",
			Name:        "NO_COLOR",
			Description: "Disable ANSI color output (any non-empty value).",
		},
		{
			Category:    "Build",
			Name:        "BUILDACTION_BUILDKIT_HOST",
			Description: "Override the BuildKit address used by the buildkit driver.",
		},
		{
			Category:    "Build",
			Name:        "BUILDKIT_HOST",
			Description: "BuildKit address used by the buildkit driver when BUILDACTION_BUILDKIT_HOST is unset.",
		},
		{
			Category:    "Registry",
			Name:        "DOCKER_CONFIG",
			Description: "Docker config directory holding registry credentials for the buildkit driver.",
		},
	}
}
