package config

import "time"

const (
	DefaultListen            = "127.0.0.1:25500"
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultFetchTimeout      = 15 * time.Second
	DefaultMaxRedirects      = 5
	DefaultUserAgent         = "subforge"
	DefaultStorageDir        = "./data"
	DefaultSynthesisTimeout  = 60 * time.Second
	DefaultAdminUsername     = "admin"
	DefaultSessionTTL        = 12 * time.Hour
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "console"
)

// ApplyDefaults fills zero values.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = DefaultListen
	}
	if cfg.Server.ReadHeaderTimeout == 0 {
		cfg.Server.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if cfg.Fetch.Timeout == 0 {
		cfg.Fetch.Timeout = DefaultFetchTimeout
	}
	if cfg.Fetch.MaxRedirects == 0 {
		cfg.Fetch.MaxRedirects = DefaultMaxRedirects
	}
	if cfg.Fetch.UserAgent == "" {
		cfg.Fetch.UserAgent = DefaultUserAgent
	}

	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = DefaultStorageDir
	}

	if cfg.Synthesis.Timeout == 0 {
		cfg.Synthesis.Timeout = DefaultSynthesisTimeout
	}

	if cfg.Admin.Username == "" {
		cfg.Admin.Username = DefaultAdminUsername
	}
	if cfg.Admin.SessionTTL == 0 {
		cfg.Admin.SessionTTL = DefaultSessionTTL
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}
