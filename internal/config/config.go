// Package config loads the service configuration: a YAML file, then
// defaults, then SUBFORGE_* environment overrides, then validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Storage   StorageConfig   `yaml:"storage"`
	Synthesis SynthesisConfig `yaml:"synthesis"`
	Admin     AdminConfig     `yaml:"admin"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Listen            string        `yaml:"listen"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

type FetchConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	MaxBytes     int64         `yaml:"max_bytes"`
	MaxRedirects int           `yaml:"max_redirects"`
	// UserAgent is sent upstream when the subscribing client sent none.
	UserAgent string `yaml:"user_agent"`
}

type StorageConfig struct {
	Dir string `yaml:"dir"`
}

type SynthesisConfig struct {
	// NamingTemplate applies to users without their own template.
	NamingTemplate string `yaml:"naming_template"`
	// LegacyServerSuffix selects "{name}-{server}" when no template is set.
	LegacyServerSuffix  bool          `yaml:"legacy_server_suffix"`
	RewriteGroupMembers *bool         `yaml:"rewrite_group_members"`
	Timeout             time.Duration `yaml:"timeout"`
	// CustomProperties are exposed to naming templates as {custom.<key>}.
	CustomProperties map[string]any `yaml:"custom_properties"`
}

type AdminConfig struct {
	Username string `yaml:"username"`
	// Password empty disables the admin API.
	Password      string        `yaml:"password"`
	SessionSecret string        `yaml:"session_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Enabled reports whether admin routes are served.
func (a AdminConfig) Enabled() bool { return a.Password != "" }

// RewriteGroups is the effective rewrite_group_members value.
func (s SynthesisConfig) RewriteGroups() bool {
	return s.RewriteGroupMembers == nil || *s.RewriteGroupMembers
}

// Load reads path (a missing file yields defaults), applies env overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
			}
		}
	}

	ApplyDefaults(&cfg)
	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with only defaults applied.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}
