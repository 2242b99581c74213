package config

// NewDefaults returns a Config populated with all default values.
// A freshly initialized project runs on badger under .sps/ with the
// stock three-state status set.
func NewDefaults() *Config {
	return &Config{
		Project: ProjectConfig{
			DefaultContext: "inbox",
		},
		Store: StoreConfig{
			Backend: "badger",
			Path:    ".sps/badger",
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8321",
		},
		Statuses: StatusesConfig{
			Values:  []string{"todo", "in-progress", "done"},
			Default: "todo",
		},
	}
}
