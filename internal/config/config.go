// Package config provides the configuration schema, loader, hot-reload
// watcher, and build store registry for the smt-tools server.
package config

import "time"

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// StoreBackend selects where recorded builds are kept.
type StoreBackend string

const (
	// StoreMemory keeps builds in process memory. They are lost on restart.
	StoreMemory StoreBackend = "memory"

	// StorePostgres keeps builds in a PostgreSQL table.
	StorePostgres StoreBackend = "postgres"
)

// IsValid reports whether b is a recognised store backend.
func (b StoreBackend) IsValid() bool {
	return b == StoreMemory || b == StorePostgres
}

// Defaults applied by [ApplyDefaults] to zero-valued fields.
const (
	DefaultListenAddr = ":8080"
	DefaultTimeout    = 10 * time.Second
	DefaultMaxBatch   = 16
	DefaultMCPPath    = "/mcp"
)

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Compendium CompendiumConfig `yaml:"compendium"`
	Search     SearchConfig     `yaml:"search"`
	Store      StoreConfig      `yaml:"store"`
	Discord    DiscordConfig    `yaml:"discord"`
	MCP        MCPConfig        `yaml:"mcp"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr" env:"SMT_LISTEN_ADDR"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level" env:"SMT_LOG_LEVEL"`
}

// CompendiumConfig locates the game data.
type CompendiumConfig struct {
	// Path is a YAML or JSON compendium file. JSON is chosen by extension.
	Path string `yaml:"path" env:"SMT_COMPENDIUM_PATH"`

	// Game is an optional label checked against the compendium's own game
	// name when both are set.
	Game string `yaml:"game" env:"SMT_COMPENDIUM_GAME"`
}

// SearchConfig holds the server-side defaults and limits for searches.
// Zero values fall back to the engine's own defaults.
type SearchConfig struct {
	// MaxLevel is the level cap used when a request does not set one.
	MaxLevel int `yaml:"max_level" env:"SMT_SEARCH_MAX_LEVEL"`

	// RecursionLimit is the recursion limit used when a request does not
	// set one. Negative disables recursion.
	RecursionLimit int `yaml:"recursion_limit" env:"SMT_SEARCH_RECURSION_LIMIT"`

	// ResultCap is the result cap used when a request does not set one.
	// Negative means unlimited.
	ResultCap int `yaml:"result_cap" env:"SMT_SEARCH_RESULT_CAP"`

	// Timeout bounds a single search.
	Timeout time.Duration `yaml:"timeout" env:"SMT_SEARCH_TIMEOUT"`

	// MaxBatch is the largest number of requests accepted in one batch.
	MaxBatch int `yaml:"max_batch" env:"SMT_SEARCH_MAX_BATCH"`
}

// StoreConfig selects and configures the build store.
type StoreConfig struct {
	Backend StoreBackend `yaml:"backend" env:"SMT_STORE_BACKEND"`

	// PostgresDSN is required when Backend is "postgres".
	PostgresDSN string `yaml:"postgres_dsn" env:"SMT_POSTGRES_DSN"`
}

// DiscordConfig enables the Discord bot when Token is set.
type DiscordConfig struct {
	Token string `yaml:"token" env:"SMT_DISCORD_TOKEN"`

	// GuildID registers commands in a single guild for fast iteration.
	// Empty registers them globally.
	GuildID string `yaml:"guild_id" env:"SMT_DISCORD_GUILD_ID"`

	// KeepCommands leaves the slash commands registered on shutdown.
	KeepCommands bool `yaml:"keep_commands" env:"SMT_DISCORD_KEEP_COMMANDS"`
}

// MCPConfig exposes the search tools over MCP streamable HTTP.
type MCPConfig struct {
	Enabled bool `yaml:"enabled" env:"SMT_MCP_ENABLED"`

	// Path is the HTTP path the MCP handler is mounted on.
	Path string `yaml:"path" env:"SMT_MCP_PATH"`
}

// ApplyDefaults fills zero-valued fields that have a server-level default.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Search.Timeout == 0 {
		cfg.Search.Timeout = DefaultTimeout
	}
	if cfg.Search.MaxBatch == 0 {
		cfg.Search.MaxBatch = DefaultMaxBatch
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = StoreMemory
	}
	if cfg.MCP.Path == "" {
		cfg.MCP.Path = DefaultMCPPath
	}
}
