package config

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// ValidationSeverity indicates whether a validation issue is an error or warning.
type ValidationSeverity string

const (
	// SeverityError indicates a fatal validation issue; the configuration is unusable.
	SeverityError ValidationSeverity = "error"
	// SeverityWarning indicates an informational validation issue; the configuration works
	// but may have problems.
	SeverityWarning ValidationSeverity = "warning"
)

// ValidationIssue represents a single validation finding.
type ValidationIssue struct {
	Severity ValidationSeverity
	Field    string // dotted path, e.g., "store.backend"
	Message  string
}

// ValidationResult holds all validation findings.
type ValidationResult struct {
	Issues []ValidationIssue
}

// HasErrors returns true if any issue has error severity.
func (vr *ValidationResult) HasErrors() bool {
	for _, issue := range vr.Issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

// HasWarnings returns true if any issue has warning severity.
func (vr *ValidationResult) HasWarnings() bool {
	for _, issue := range vr.Issues {
		if issue.Severity == SeverityWarning {
			return true
		}
	}
	return false
}

// Errors returns only error-severity issues.
func (vr *ValidationResult) Errors() []ValidationIssue {
	var errs []ValidationIssue
	for _, issue := range vr.Issues {
		if issue.Severity == SeverityError {
			errs = append(errs, issue)
		}
	}
	return errs
}

// Warnings returns only warning-severity issues.
func (vr *ValidationResult) Warnings() []ValidationIssue {
	var warns []ValidationIssue
	for _, issue := range vr.Issues {
		if issue.Severity == SeverityWarning {
			warns = append(warns, issue)
		}
	}
	return warns
}

// validBackends is the set of recognized values for store.backend.
var validBackends = map[string]bool{
	"memory":   true,
	"badger":   true,
	"postgres": true,
}

// Validate checks the configuration for correctness and completeness.
// It performs structural validation, semantic validation, and unknown key detection.
//
// Parameters:
//   - cfg: the configuration to validate
//   - meta: TOML metadata from BurntSushi/toml (may be nil if no file was loaded)
//
// Returns validation results. Check HasErrors() to determine if the config is usable.
func Validate(cfg *Config, meta *toml.MetaData) *ValidationResult {
	vr := &ValidationResult{}

	if cfg == nil {
		addError(vr, "", "configuration is nil")
		return vr
	}

	validateProject(vr, &cfg.Project)
	validateStore(vr, &cfg.Store)
	validateServer(vr, &cfg.Server)
	validateStatuses(vr, &cfg.Statuses)
	validateUnknownKeys(vr, meta)

	return vr
}

// validateProject checks the [project] section for errors and warnings.
func validateProject(vr *ValidationResult, p *ProjectConfig) {
	// Error: project.name must not be empty.
	if p.Name == "" {
		addError(vr, "project.name", "must not be empty")
	}

	// Warning: without a default context, every task create needs an explicit one.
	if p.DefaultContext == "" {
		addWarning(vr, "project.default_context",
			"empty; task creation will require an explicit context")
	}
}

// validateStore checks the [store] section.
func validateStore(vr *ValidationResult, s *StoreConfig) {
	// Error: backend must be recognized.
	if !validBackends[s.Backend] {
		addError(vr, "store.backend",
			fmt.Sprintf("unrecognized backend %q; must be one of: memory, badger, postgres", s.Backend))
		return
	}

	switch s.Backend {
	case "memory":
		// Warning: memory backend loses all state on exit.
		addWarning(vr, "store.backend", "memory backend does not persist data across runs")

	case "badger":
		// Error: badger needs a data directory.
		if s.Path == "" {
			addError(vr, "store.path", `must not be empty when store.backend is "badger"`)
		}

	case "postgres":
		// Error: postgres needs a connection string.
		if s.DSN == "" {
			addError(vr, "store.dsn", `must not be empty when store.backend is "postgres"`)
		} else if !looksLikeDSN(s.DSN) {
			addWarning(vr, "store.dsn",
				fmt.Sprintf("%q does not look like a postgres connection string", s.DSN))
		}
	}

	// Warning: sync_writes only matters for badger.
	if s.SyncWrites && s.Backend != "badger" {
		addWarning(vr, "store.sync_writes", "only applies to the badger backend")
	}

	// Warning: store.path exists but is not a directory.
	if s.Path != "" {
		if info, err := os.Stat(s.Path); err == nil && !info.IsDir() {
			addWarning(vr, "store.path",
				fmt.Sprintf("%q exists and is not a directory", s.Path))
		}
	}
}

// looksLikeDSN reports whether a string is plausibly a postgres connection
// string, either URL form or keyword/value form.
func looksLikeDSN(dsn string) bool {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return true
	}
	return strings.Contains(dsn, "=")
}

// validateServer checks the [server] section.
func validateServer(vr *ValidationResult, s *ServerConfig) {
	// Error: addr must be host:port when set.
	if s.Addr != "" {
		if _, _, err := net.SplitHostPort(s.Addr); err != nil {
			addError(vr, "server.addr",
				fmt.Sprintf("invalid listen address %q: %v", s.Addr, err))
		}
	}
}

// validateStatuses checks the [statuses] section.
func validateStatuses(vr *ValidationResult, s *StatusesConfig) {
	// Error: at least one status value is required.
	if len(s.Values) == 0 {
		addError(vr, "statuses.values", "must list at least one status")
		return
	}

	seen := make(map[string]bool, len(s.Values))
	for i, v := range s.Values {
		field := fmt.Sprintf("statuses.values[%d]", i)
		if v == "" {
			addError(vr, field, "must not be an empty string")
			continue
		}
		if strings.ContainsAny(v, " \t") {
			addError(vr, field, fmt.Sprintf("%q must not contain whitespace", v))
		}
		if seen[v] {
			addError(vr, field, fmt.Sprintf("duplicate status %q", v))
		}
		seen[v] = true
	}

	// Error: the default status must be a member of the set.
	if s.Default == "" {
		addError(vr, "statuses.default", "must not be empty")
	} else if !seen[s.Default] {
		addError(vr, "statuses.default",
			fmt.Sprintf("%q is not one of the configured values", s.Default))
	}
}

// validateUnknownKeys checks for TOML keys that did not map to any config struct field.
func validateUnknownKeys(vr *ValidationResult, meta *toml.MetaData) {
	if meta == nil {
		return
	}

	for _, key := range meta.Undecoded() {
		path := strings.Join(key, ".")
		addWarning(vr, path, "unknown configuration key")
	}
}

// addError appends an error-severity issue to the validation result.
func addError(vr *ValidationResult, field, message string) {
	vr.Issues = append(vr.Issues, ValidationIssue{
		Severity: SeverityError,
		Field:    field,
		Message:  message,
	})
}

// addWarning appends a warning-severity issue to the validation result.
func addWarning(vr *ValidationResult, field, message string) {
	vr.Issues = append(vr.Issues, ValidationIssue{
		Severity: SeverityWarning,
		Field:    field,
		Message:  message,
	})
}
