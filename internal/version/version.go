package version

import (
	"fmt"
	"runtime"
)

// These values are overridden at build time via -ldflags "-X ...".
var (
	Version      = "dev"
	GitCommit    = "unknown"
	GitTreeState = "unknown" // clean|dirty|unknown
	BuildDate    = "unknown" // RFC3339 UTC preferred
)

type Info struct {
	Version      string `json:"version"`
	GitCommit    string `json:"gitCommit,omitempty"`
	GitTreeState string `json:"gitTreeState,omitempty"`
	BuildDate    string `json:"buildDate,omitempty"`
	GoVersion    string `json:"goVersion"`
	Platform     string `json:"platform"`
}

func Get() Info {
	return Info{
		Version:      Version,
		GitCommit:    known(GitCommit),
		GitTreeState: known(GitTreeState),
		BuildDate:    known(BuildDate),
		GoVersion:    runtime.Version(),
		Platform:     fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// UserAgent identifies buildaction in BuildKit session metadata and logs.
func (i Info) UserAgent() string {
	if i.GitCommit == "" {
		return "buildaction/" + i.Version
	}
	return fmt.Sprintf("buildaction/%s (%s)", i.Version, i.GitCommit)
}

func known(v string) string {
	if v == "unknown" {
		return ""
	}
	return v
}
