package config

// ConfigSource identifies where a configuration value came from.
type ConfigSource string

const (
	// SourceDefault indicates the value came from built-in defaults.
	SourceDefault ConfigSource = "default"
	// SourceFile indicates the value came from the sps.toml config file.
	SourceFile ConfigSource = "file"
	// SourceEnv indicates the value came from an environment variable.
	SourceEnv ConfigSource = "env"
	// SourceCLI indicates the value came from a CLI flag.
	SourceCLI ConfigSource = "cli"
)

// ResolvedConfig holds the fully-resolved configuration with source tracking.
// The Config field contains the merged values; Sources tracks where each came from.
type ResolvedConfig struct {
	Config  *Config
	Sources map[string]ConfigSource // key is dotted path, e.g., "project.name"
	Path    string                  // path to the config file used (empty if none)
}

// CLIOverrides captures flag values that can override configuration.
// A nil *string means "not overridden"; a *string pointing to "" means
// "override to empty string."
type CLIOverrides struct {
	ProjectName    *string
	DefaultContext *string
	Actor          *string
	StoreBackend   *string
	StorePath      *string
	StoreDSN       *string
	ServerAddr     *string
}

// EnvFunc is a function that looks up environment variables.
// Default implementation is os.LookupEnv. Injected for testability.
type EnvFunc func(key string) (string, bool)

// Resolve merges configuration from all sources in priority order:
// CLI flags > environment variables > config file > defaults.
//
// Parameters:
//   - defaults: built-in default config (from NewDefaults())
//   - fileConfig: parsed config from sps.toml (nil if no file found)
//   - envFn: function to look up environment variables
//   - overrides: CLI flag values (nil fields mean "not set")
//
// Returns the fully-resolved config with source annotations.
func Resolve(defaults *Config, fileConfig *Config, envFn EnvFunc, overrides *CLIOverrides) *ResolvedConfig {
	rc := &ResolvedConfig{
		Config:  &Config{},
		Sources: make(map[string]ConfigSource),
	}

	if defaults == nil {
		defaults = &Config{}
	}
	if envFn == nil {
		envFn = func(string) (string, bool) { return "", false }
	}
	if overrides == nil {
		overrides = &CLIOverrides{}
	}

	// Layer 1: Start with defaults as the base.
	resolveFromDefaults(rc, defaults)

	// Layer 2: Merge file config on top (non-zero values override).
	if fileConfig != nil {
		resolveFromFile(rc, fileConfig)
	}

	// Layer 3: Merge environment variables on top.
	resolveFromEnv(rc, envFn)

	// Layer 4: Merge CLI overrides on top.
	resolveFromCLI(rc, overrides)

	return rc
}

// --- Layer 1: Defaults ---

func resolveFromDefaults(rc *ResolvedConfig, defaults *Config) {
	c := rc.Config

	setString(&c.Project.Name, defaults.Project.Name, "project.name", SourceDefault, rc.Sources)
	setString(&c.Project.DefaultContext, defaults.Project.DefaultContext, "project.default_context", SourceDefault, rc.Sources)
	setString(&c.Project.Actor, defaults.Project.Actor, "project.actor", SourceDefault, rc.Sources)

	setString(&c.Store.Backend, defaults.Store.Backend, "store.backend", SourceDefault, rc.Sources)
	setString(&c.Store.Path, defaults.Store.Path, "store.path", SourceDefault, rc.Sources)
	setString(&c.Store.DSN, defaults.Store.DSN, "store.dsn", SourceDefault, rc.Sources)
	c.Store.SyncWrites = defaults.Store.SyncWrites
	rc.Sources["store.sync_writes"] = SourceDefault

	setString(&c.Server.Addr, defaults.Server.Addr, "server.addr", SourceDefault, rc.Sources)

	c.Statuses.Values = copyStrings(defaults.Statuses.Values)
	rc.Sources["statuses.values"] = SourceDefault
	setString(&c.Statuses.Default, defaults.Statuses.Default, "statuses.default", SourceDefault, rc.Sources)
}

// --- Layer 2: File ---

func resolveFromFile(rc *ResolvedConfig, file *Config) {
	c := rc.Config

	mergeString(&c.Project.Name, file.Project.Name, "project.name", SourceFile, rc.Sources)
	mergeString(&c.Project.DefaultContext, file.Project.DefaultContext, "project.default_context", SourceFile, rc.Sources)
	mergeString(&c.Project.Actor, file.Project.Actor, "project.actor", SourceFile, rc.Sources)

	mergeString(&c.Store.Backend, file.Store.Backend, "store.backend", SourceFile, rc.Sources)
	mergeString(&c.Store.Path, file.Store.Path, "store.path", SourceFile, rc.Sources)
	mergeString(&c.Store.DSN, file.Store.DSN, "store.dsn", SourceFile, rc.Sources)

	// The default is false, so only an explicit true carries information.
	if file.Store.SyncWrites {
		c.Store.SyncWrites = true
		rc.Sources["store.sync_writes"] = SourceFile
	}

	mergeString(&c.Server.Addr, file.Server.Addr, "server.addr", SourceFile, rc.Sources)

	if len(file.Statuses.Values) > 0 {
		c.Statuses.Values = copyStrings(file.Statuses.Values)
		rc.Sources["statuses.values"] = SourceFile
	}
	mergeString(&c.Statuses.Default, file.Statuses.Default, "statuses.default", SourceFile, rc.Sources)
}

// --- Layer 3: Environment ---

// Environment variable mapping:
//
//	SPS_PROJECT_NAME    -> project.name
//	SPS_DEFAULT_CONTEXT -> project.default_context
//	SPS_ACTOR           -> project.actor
//	SPS_STORE_BACKEND   -> store.backend
//	SPS_STORE_PATH      -> store.path
//	SPS_STORE_DSN       -> store.dsn
//	SPS_SERVER_ADDR     -> server.addr
func resolveFromEnv(rc *ResolvedConfig, envFn EnvFunc) {
	c := rc.Config

	envString(envFn, "SPS_PROJECT_NAME", &c.Project.Name, "project.name", rc.Sources)
	envString(envFn, "SPS_DEFAULT_CONTEXT", &c.Project.DefaultContext, "project.default_context", rc.Sources)
	envString(envFn, "SPS_ACTOR", &c.Project.Actor, "project.actor", rc.Sources)
	envString(envFn, "SPS_STORE_BACKEND", &c.Store.Backend, "store.backend", rc.Sources)
	envString(envFn, "SPS_STORE_PATH", &c.Store.Path, "store.path", rc.Sources)
	envString(envFn, "SPS_STORE_DSN", &c.Store.DSN, "store.dsn", rc.Sources)
	envString(envFn, "SPS_SERVER_ADDR", &c.Server.Addr, "server.addr", rc.Sources)
}

// --- Layer 4: CLI overrides ---

func resolveFromCLI(rc *ResolvedConfig, overrides *CLIOverrides) {
	c := rc.Config

	cliString(overrides.ProjectName, &c.Project.Name, "project.name", rc.Sources)
	cliString(overrides.DefaultContext, &c.Project.DefaultContext, "project.default_context", rc.Sources)
	cliString(overrides.Actor, &c.Project.Actor, "project.actor", rc.Sources)
	cliString(overrides.StoreBackend, &c.Store.Backend, "store.backend", rc.Sources)
	cliString(overrides.StorePath, &c.Store.Path, "store.path", rc.Sources)
	cliString(overrides.StoreDSN, &c.Store.DSN, "store.dsn", rc.Sources)
	cliString(overrides.ServerAddr, &c.Server.Addr, "server.addr", rc.Sources)
}

// --- Helpers ---

// setString unconditionally sets the target to the given value and records the source.
func setString(target *string, value string, path string, source ConfigSource, sources map[string]ConfigSource) {
	*target = value
	sources[path] = source
}

// mergeString overwrites the target only if value is non-empty (non-zero string).
// For file-layer merging, an empty string in the file means "not set in file",
// so it does not override the default.
func mergeString(target *string, value string, path string, source ConfigSource, sources map[string]ConfigSource) {
	if value != "" {
		*target = value
		sources[path] = source
	}
}

// envString overwrites the target when the environment variable is set,
// even to an empty value.
func envString(envFn EnvFunc, key string, target *string, path string, sources map[string]ConfigSource) {
	if val, ok := envFn(key); ok {
		*target = val
		sources[path] = SourceEnv
	}
}

// cliString overwrites the target when the flag pointer is non-nil.
func cliString(override *string, target *string, path string, sources map[string]ConfigSource) {
	if override != nil {
		*target = *override
		sources[path] = SourceCLI
	}
}

// copyStrings returns a copy of a string slice, or nil for an empty input.
func copyStrings(src []string) []string {
	if len(src) == 0 {
		return nil
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}
