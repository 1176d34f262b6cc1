// Package config loads the harvestgate server configuration: a JSON5 file
// on disk layered with environment-variable overrides for secrets, grounded
// on the teacher's own config.Default()/config.Load() split (config values
// that are safe to commit live in the file; API keys and DSNs come from
// env only).
package config

import "time"

// Config is the full runtime configuration for the harvestgate server.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Redis    RedisConfig    `json:"redis"`

	RemoteBrowser RemoteBrowserConfig `json:"remote_browser"`
	Providers     ProvidersConfig     `json:"providers"`
	Sniper        SniperConfig        `json:"sniper"`
}

// ServerConfig controls the HTTP listener (spec §6 HTTP surface).
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// DatabaseConfig holds the task-store/auth-filter Postgres connection.
// PostgresDSN is never read from the JSON5 file — env only (secret).
type DatabaseConfig struct {
	PostgresDSN string `json:"-"`
}

// RedisConfig backs internal/lockstore. URL is env-only (secret, may embed
// credentials).
type RedisConfig struct {
	URL string `json:"-"`
}

// RemoteBrowserConfig points at the remote browser provider behind
// internal/remotebrowser.HTTPClient (spec §4.C). APIKey is env-only.
type RemoteBrowserConfig struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"-"`
}

// ProviderConfig is one LLM vendor's credentials + defaults, mirrored per
// vendor the way the teacher's internal/config.ProvidersConfig groups one
// struct per provider. APIKey is always env-only.
type ProviderConfig struct {
	APIKey       string `json:"-"`
	APIBase      string `json:"api_base,omitempty"`
	DefaultModel string `json:"default_model,omitempty"`
}

// ProvidersConfig groups the LLM vendors internal/providers and
// internal/llmagent can be constructed against.
type ProvidersConfig struct {
	Anthropic ProviderConfig `json:"anthropic"`
	OpenAI    ProviderConfig `json:"openai"`
	DashScope ProviderConfig `json:"dashscope"`

	// Active names which of the above backs internal/llmagent.Agent
	// instances for the sniper workflows.
	Active string `json:"active"`
}

// SniperConfig tunes the agent-orchestrator workflows (spec §4.H).
type SniperConfig struct {
	MonitorWindow      time.Duration `json:"-"`
	MonitorWindowDays  int           `json:"monitor_window_days"`
	DefaultConcurrency int           `json:"default_concurrency"`
	SearchLimit        int           `json:"search_limit"`
}
