package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/John-Robertt/subforge/internal/naming"
)

type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every failing field.
type ValidationError struct {
	Errors []FieldError
}

func (e ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "configuration validation failed: " + e.Errors[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:", len(e.Errors))
	for _, fe := range e.Errors {
		sb.WriteString("\n  - ")
		sb.WriteString(fe.Error())
	}
	return sb.String()
}

func Validate(cfg *Config) error {
	var errs []FieldError
	add := func(field, msg string) {
		errs = append(errs, FieldError{Field: field, Message: msg})
	}

	if _, _, err := net.SplitHostPort(cfg.Server.Listen); err != nil {
		add("server.listen", "must be host:port")
	}
	if cfg.Server.ReadHeaderTimeout < 0 {
		add("server.read_header_timeout", "must not be negative")
	}
	if cfg.Server.ShutdownTimeout < 0 {
		add("server.shutdown_timeout", "must not be negative")
	}
	if cfg.Fetch.Timeout < 0 {
		add("fetch.timeout", "must not be negative")
	}
	if cfg.Fetch.MaxBytes < 0 {
		add("fetch.max_bytes", "must not be negative")
	}
	if cfg.Fetch.MaxRedirects < 0 {
		add("fetch.max_redirects", "must not be negative")
	}
	if strings.TrimSpace(cfg.Storage.Dir) == "" {
		add("storage.dir", "must not be empty")
	}
	if err := naming.Validate(cfg.Synthesis.NamingTemplate); err != nil {
		add("synthesis.naming_template", err.Error())
	}
	for k := range cfg.Synthesis.CustomProperties {
		if err := naming.Validate("{custom." + k + "}"); err != nil {
			add("synthesis.custom_properties."+k, "key must be a plain identifier")
		}
	}
	if cfg.Synthesis.Timeout < 0 {
		add("synthesis.timeout", "must not be negative")
	}
	if cfg.Admin.Enabled() && len(cfg.Admin.SessionSecret) < 16 {
		add("admin.session_secret", "must be at least 16 bytes when admin.password is set")
	}
	if cfg.Admin.SessionTTL < 0 {
		add("admin.session_ttl", "must not be negative")
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("log.level", "must be one of debug, info, warn, error")
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "console", "json":
	default:
		add("log.format", "must be console or json")
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}
