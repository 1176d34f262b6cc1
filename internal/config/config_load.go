package config

import (
	"os"
	"strconv"
	"time"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible, committable-to-disk defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8790,
		},
		Sniper: SniperConfig{
			MonitorWindowDays:  10,
			DefaultConcurrency: 2,
			SearchLimit:        10,
		},
	}
}

// envStr sets *dst to the named env var's value if it is set and non-empty,
// mirroring the teacher's config_load.go helper of the same name.
func envStr(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func envInt(name string, dst *int) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Load reads path (if it exists) as JSON5 over the defaults, then applies
// environment-variable overrides for every secret field — never persisted
// to the file, always sourced fresh from the process environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := json5.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()
	cfg.Sniper.MonitorWindow = time.Duration(cfg.Sniper.MonitorWindowDays) * 24 * time.Hour
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	envStr("HARVESTGATE_HOST", &c.Server.Host)
	envInt("HARVESTGATE_PORT", &c.Server.Port)

	envStr("HARVESTGATE_POSTGRES_DSN", &c.Database.PostgresDSN)
	envStr("HARVESTGATE_REDIS_URL", &c.Redis.URL)

	envStr("HARVESTGATE_REMOTE_BROWSER_BASE_URL", &c.RemoteBrowser.BaseURL)
	envStr("HARVESTGATE_REMOTE_BROWSER_API_KEY", &c.RemoteBrowser.APIKey)

	envStr("HARVESTGATE_ANTHROPIC_API_KEY", &c.Providers.Anthropic.APIKey)
	envStr("HARVESTGATE_OPENAI_API_KEY", &c.Providers.OpenAI.APIKey)
	envStr("HARVESTGATE_DASHSCOPE_API_KEY", &c.Providers.DashScope.APIKey)
	envStr("HARVESTGATE_ACTIVE_PROVIDER", &c.Providers.Active)

	envInt("HARVESTGATE_MONITOR_WINDOW_DAYS", &c.Sniper.MonitorWindowDays)
	envInt("HARVESTGATE_DEFAULT_CONCURRENCY", &c.Sniper.DefaultConcurrency)
	envInt("HARVESTGATE_SEARCH_LIMIT", &c.Sniper.SearchLimit)
}
