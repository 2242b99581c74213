// Package config loads, validates, and resolves sps.toml. Loading is strict
// about syntax and lenient about unknown keys; resolution layers defaults
// under whatever the file provides.
package config

// Config is the top-level configuration structure mapping to sps.toml.
type Config struct {
	Project  ProjectConfig  `toml:"project"`
	Store    StoreConfig    `toml:"store"`
	Server   ServerConfig   `toml:"server"`
	Statuses StatusesConfig `toml:"statuses"`
}

// ProjectConfig maps to the [project] section in sps.toml.
type ProjectConfig struct {
	Name           string `toml:"name"`
	DefaultContext string `toml:"default_context"`
	Actor          string `toml:"actor"`
}

// StoreConfig maps to the [store] section in sps.toml.
type StoreConfig struct {
	Backend    string `toml:"backend"` // memory, badger, or postgres
	Path       string `toml:"path"`    // badger data directory
	DSN        string `toml:"dsn"`     // postgres connection string
	SyncWrites bool   `toml:"sync_writes"`
}

// ServerConfig maps to the [server] section in sps.toml.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// StatusesConfig maps to the [statuses] section in sps.toml.
type StatusesConfig struct {
	Values  []string `toml:"values"`
	Default string   `toml:"default"`
}
