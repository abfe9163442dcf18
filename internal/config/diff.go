package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// SearchChanged is true if any search default or limit changed.
	SearchChanged bool
	NewSearch     SearchConfig

	// CompendiumChanged is true if the compendium path or game label
	// changed. The compendium is reloaded from the new path.
	CompendiumChanged bool

	// RestartRequired lists changed settings that only take effect after a
	// restart, by YAML key.
	RestartRequired []string
}

// Changed reports whether d carries any change at all.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.SearchChanged || d.CompendiumChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Search != new.Search {
		d.SearchChanged = true
		d.NewSearch = new.Search
	}
	if old.Compendium != new.Compendium {
		d.CompendiumChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if old.Store != new.Store {
		d.RestartRequired = append(d.RestartRequired, "store")
	}
	if old.Discord != new.Discord {
		d.RestartRequired = append(d.RestartRequired, "discord")
	}
	if old.MCP != new.MCP {
		d.RestartRequired = append(d.RestartRequired, "mcp")
	}
	return d
}
