package core

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	prov "github.com/3cpo-dev/ebdeploy/internal/providers"
	"gopkg.in/yaml.v3"
)

// ConfigDir resolves $XDG_CONFIG_HOME/ebdeploy or ~/.config/ebdeploy.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "ebdeploy")
}

// LoadConfig reads YAML configuration from a path. If path is empty, it resolves
// $XDG_CONFIG_HOME/ebdeploy/config.yaml or ~/.config/ebdeploy/config.yaml; a
// missing default file yields an empty configuration.
func LoadConfig(path string) (prov.Config, error) {
	var cfg prov.Config
	explicit := path != ""
	if !explicit {
		path = filepath.Join(ConfigDir(), "config.yaml")
	}
	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		content, err := io.ReadAll(f)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case explicit || !os.IsNotExist(err):
		return cfg, fmt.Errorf("open config: %w", err)
	}

	// Merge secrets from secrets.env if present to avoid storing keys in YAML
	secrets, _ := LoadSecretsEnv("")
	for _, k := range []string{"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "AWS_SESSION_TOKEN", "AWS_REGION"} {
		if v := os.Getenv(k); v != "" {
			secrets[k] = v
		}
	}
	if v := secrets["AWS_ACCESS_KEY_ID"]; v != "" {
		cfg.AWS.AccessKeyID = v
	}
	if v := secrets["AWS_SECRET_ACCESS_KEY"]; v != "" {
		cfg.AWS.SecretAccessKey = v
	}
	if v := secrets["AWS_SESSION_TOKEN"]; v != "" {
		cfg.AWS.SessionToken = v
	}
	if v := secrets["AWS_REGION"]; v != "" && cfg.AWS.Region == "" {
		cfg.AWS.Region = v
	}
	return cfg, nil
}
