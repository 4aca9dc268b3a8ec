package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// applyEnvOverrides applies SUBFORGE_* variables. Environment values always
// win over the file. Malformed numbers and durations are reported.
func applyEnvOverrides(cfg *Config) error {
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) error {
		v := os.Getenv(name)
		if v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = d
		return nil
	}
	boolean := func(name string, dst *bool) error {
		v := os.Getenv(name)
		if v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = b
		return nil
	}

	str("SUBFORGE_LISTEN", &cfg.Server.Listen)
	str("SUBFORGE_STORAGE_DIR", &cfg.Storage.Dir)
	str("SUBFORGE_FETCH_USER_AGENT", &cfg.Fetch.UserAgent)
	str("SUBFORGE_NAMING_TEMPLATE", &cfg.Synthesis.NamingTemplate)
	str("SUBFORGE_ADMIN_USERNAME", &cfg.Admin.Username)
	str("SUBFORGE_ADMIN_PASSWORD", &cfg.Admin.Password)
	str("SUBFORGE_ADMIN_SECRET", &cfg.Admin.SessionSecret)
	str("SUBFORGE_LOG_LEVEL", &cfg.Log.Level)
	str("SUBFORGE_LOG_FORMAT", &cfg.Log.Format)

	if err := dur("SUBFORGE_FETCH_TIMEOUT", &cfg.Fetch.Timeout); err != nil {
		return err
	}
	if err := dur("SUBFORGE_SYNTHESIS_TIMEOUT", &cfg.Synthesis.Timeout); err != nil {
		return err
	}
	if err := dur("SUBFORGE_ADMIN_SESSION_TTL", &cfg.Admin.SessionTTL); err != nil {
		return err
	}
	if err := boolean("SUBFORGE_LEGACY_SERVER_SUFFIX", &cfg.Synthesis.LegacyServerSuffix); err != nil {
		return err
	}
	if v := os.Getenv("SUBFORGE_REWRITE_GROUP_MEMBERS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SUBFORGE_REWRITE_GROUP_MEMBERS: %w", err)
		}
		cfg.Synthesis.RewriteGroupMembers = &b
	}
	if v := os.Getenv("SUBFORGE_FETCH_MAX_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("SUBFORGE_FETCH_MAX_BYTES: %w", err)
		}
		cfg.Fetch.MaxBytes = n
	}
	return nil
}
