// File: internal/dockerconfig/dockerconfig.go
// Brief: Registry credentials for the BuildKit driver.

// Package dockerconfig loads the docker CLI config that supplies registry
// credentials to direct BuildKit solves.

package dockerconfig

import (
	"errors"
	"io"
	"os"

	"github.com/docker/cli/cli/config"
	"github.com/docker/cli/cli/config/configfile"
	"github.com/docker/cli/cli/config/credentials"
)

// Load reads config.json from dir, or from the default location
// ($DOCKER_CONFIG or ~/.docker) when dir is empty. A missing file yields an
// empty config that falls back to the platform credential store.
func Load(dir string, stderr io.Writer) (*configfile.ConfigFile, error) {
	var cfg *configfile.ConfigFile
	if dir == "" {
		cfg = config.LoadDefaultConfigFile(stderr)
		if cfg == nil {
			return nil, errors.New("unable to load docker config")
		}
	} else {
		info, err := os.Stat(dir)
		switch {
		case err == nil && !info.IsDir():
			return nil, errors.New("docker config path " + dir + " is not a directory")
		case err != nil && !os.IsNotExist(err):
			return nil, err
		}
		if cfg, err = config.Load(dir); err != nil {
			return nil, err
		}
	}
	if !cfg.ContainsAuth() {
		cfg.CredentialsStore = credentials.DetectDefaultStore(cfg.CredentialsStore)
	}
	return cfg, nil
}
