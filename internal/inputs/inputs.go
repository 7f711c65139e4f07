// File: internal/inputs/inputs.go
// Brief: Internal inputs package implementation for 'inputs'.

// Package inputs loads the build step inputs and renders them as a docker
// buildx command line.
package inputs

import (
	"fmt"
	"os"
	"strings"

	"github.com/example/buildaction/internal/inputlist"
)

// Getter is the input lookup Load needs; *actioninput.Source implements it.
type Getter interface {
	Get(name string) string
	GetBool(name string) (bool, error)
	GetList(name string, mode inputlist.Mode) []string
}

// Inputs holds every input of the build step after list parsing.
type Inputs struct {
	AddHosts     []string `json:"add-hosts,omitempty"`
	Allow        []string `json:"allow,omitempty"`
	BuildArgs    []string `json:"build-args,omitempty"`
	Builder      string   `json:"builder,omitempty"`
	CacheFrom    []string `json:"cache-from,omitempty"`
	CacheTo      []string `json:"cache-to,omitempty"`
	CgroupParent string   `json:"cgroup-parent,omitempty"`
	Context      string   `json:"context"`
	File         string   `json:"file,omitempty"`
	Labels       []string `json:"labels,omitempty"`
	Load         bool     `json:"load"`
	Network      string   `json:"network,omitempty"`
	NoCache      bool     `json:"no-cache"`
	Outputs      []string `json:"outputs,omitempty"`
	Platforms    []string `json:"platforms,omitempty"`
	Pull         bool     `json:"pull"`
	Push         bool     `json:"push"`
	Secrets      []string `json:"secrets,omitempty"`
	SecretFiles  []string `json:"secret-files,omitempty"`
	ShmSize      string   `json:"shm-size,omitempty"`
	SSH          []string `json:"ssh,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Target       string   `json:"target,omitempty"`
	Ulimit       []string `json:"ulimit,omitempty"`
	GithubToken  string   `json:"-"`
}

// Load reads all inputs from src. An empty context falls back to defaultContext.
func Load(src Getter, defaultContext string) (*Inputs, error) {
	in := &Inputs{
		AddHosts:     src.GetList("add-hosts", inputlist.ModePlain),
		Allow:        src.GetList("allow", inputlist.ModePlain),
		BuildArgs:    src.GetList("build-args", inputlist.ModeQuoted),
		Builder:      src.Get("builder"),
		CacheFrom:    src.GetList("cache-from", inputlist.ModeQuoted),
		CacheTo:      src.GetList("cache-to", inputlist.ModeQuoted),
		CgroupParent: src.Get("cgroup-parent"),
		Context:      src.Get("context"),
		File:         src.Get("file"),
		Labels:       src.GetList("labels", inputlist.ModeQuoted),
		Network:      src.Get("network"),
		Outputs:      src.GetList("outputs", inputlist.ModeQuoted),
		Platforms:    src.GetList("platforms", inputlist.ModePlain),
		Secrets:      src.GetList("secrets", inputlist.ModeQuoted),
		SecretFiles:  src.GetList("secret-files", inputlist.ModeQuoted),
		ShmSize:      src.Get("shm-size"),
		SSH:          src.GetList("ssh", inputlist.ModePlain),
		Tags:         src.GetList("tags", inputlist.ModePlain),
		Target:       src.Get("target"),
		Ulimit:       src.GetList("ulimit", inputlist.ModeQuoted),
		GithubToken:  src.Get("github-token"),
	}
	if in.Context == "" {
		in.Context = defaultContext
	}
	bools := []struct {
		name string
		dst  *bool
	}{
		{"load", &in.Load},
		{"no-cache", &in.NoCache},
		{"pull", &in.Pull},
		{"push", &in.Push},
	}
	for _, b := range bools {
		v, err := src.GetBool(b.name)
		if err != nil {
			return nil, err
		}
		*b.dst = v
	}
	return in, nil
}

// DefaultContext returns the git context of the workflow's repository, or "."
// outside a workflow run.
func DefaultContext(getenv func(string) string) string {
	if getenv == nil {
		getenv = os.Getenv
	}
	repo := strings.TrimSpace(getenv("GITHUB_REPOSITORY"))
	if repo == "" {
		return "."
	}
	server := strings.TrimSuffix(strings.TrimSpace(getenv("GITHUB_SERVER_URL")), "/")
	if server == "" {
		server = "https://github.com"
	}
	ctx := fmt.Sprintf("%s/%s.git", server, repo)
	if ref := strings.TrimSpace(getenv("GITHUB_REF")); ref != "" {
		ctx += "#" + ref
	}
	return ctx
}

// Redacted returns a copy safe to print: secret values are masked.
func (in *Inputs) Redacted() *Inputs {
	out := *in
	if len(in.Secrets) > 0 {
		out.Secrets = make([]string, 0, len(in.Secrets))
		for _, secret := range in.Secrets {
			key, _, ok := strings.Cut(secret, "=")
			if !ok {
				out.Secrets = append(out.Secrets, "***")
				continue
			}
			out.Secrets = append(out.Secrets, key+"=***")
		}
	}
	return &out
}
