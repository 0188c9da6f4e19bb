package config

// Config holds runtime settings for the sharing client.
//
// Fields:
//   - ServerBaseURL: base URL of the backend API, without trailing slash.
//   - CacheDSN: sqlite DSN of the local key cache database.
//   - Debug: enables debug-level logging.
type Config struct {
	ServerBaseURL string
	CacheDSN      string
	Debug         bool
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerBaseURL = "https://localhost:8443"
	c.CacheDSN = "file:sharecore.db"
	c.Debug = false
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
