package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Providers struct {
		// Order lists provider names most quota-generous first.
		Order           []string `yaml:"order"`
		TwelveDataKey   string   `yaml:"twelve_data_key"`
		FinnhubKey      string   `yaml:"finnhub_key"`
		AlphaVantageKey string   `yaml:"alpha_vantage_key"`
	} `yaml:"providers"`
	Estimation struct {
		GoogleAPIKey string `yaml:"google_api_key"`
		Model        string `yaml:"model"`
	} `yaml:"estimation"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Schedule struct {
		RefreshCron   string `yaml:"refresh_cron"`
		SweepCron     string `yaml:"sweep_cron"`
		RetentionCron string `yaml:"retention_cron"`
	} `yaml:"schedule"`
	// PrioritySymbols is the hot list refreshed every cycle.
	PrioritySymbols []string `yaml:"priority_symbols"`
	// CacheTTLSeconds overrides the per-class TTL table.
	CacheTTLSeconds map[string]int `yaml:"cache_ttl_seconds"`
	// FailureThreshold deactivates a symbol after this many
	// consecutive failures.
	FailureThreshold int `yaml:"failure_threshold"`
	// FetchDelaySeconds spaces scheduled provider calls.
	FetchDelaySeconds int  `yaml:"fetch_delay_seconds"`
	RunOnStart        bool `yaml:"run_on_start"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("TWELVE_DATA_API_KEY"); v != "" {
		cfg.Providers.TwelveDataKey = v
	}
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		cfg.Providers.FinnhubKey = v
	}
	if v := os.Getenv("ALPHA_VANTAGE_API_KEY"); v != "" {
		cfg.Providers.AlphaVantageKey = v
	}
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		cfg.Estimation.GoogleAPIKey = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		cfg.Estimation.Model = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("PRIORITY_SYMBOLS"); v != "" {
		cfg.PrioritySymbols = splitSymbols(v)
	}
	if v := os.Getenv("RUN_ON_START"); v != "" {
		cfg.RunOnStart = v == "1" || strings.EqualFold(v, "true")
	}

	// Defaults
	if len(cfg.Providers.Order) == 0 {
		cfg.Providers.Order = []string{"twelve_data", "finnhub", "alpha_vantage"}
	}
	if cfg.Schedule.RefreshCron == "" {
		cfg.Schedule.RefreshCron = "0 0 */2 * * *"
	}
	if cfg.Schedule.SweepCron == "" {
		cfg.Schedule.SweepCron = "0 0 2 * * *"
	}
	if cfg.Schedule.RetentionCron == "" {
		cfg.Schedule.RetentionCron = "0 0 3 * * 0"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/marketvault.db"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.FetchDelaySeconds == 0 {
		cfg.FetchDelaySeconds = 2
	}

	return cfg, nil
}

// Validate checks that at least one market data provider is configured.
func (c *Config) Validate() error {
	if c.Providers.TwelveDataKey == "" && c.Providers.FinnhubKey == "" && c.Providers.AlphaVantageKey == "" {
		return fmt.Errorf("at least one provider API key is required")
	}
	for _, name := range c.Providers.Order {
		switch name {
		case "twelve_data", "finnhub", "alpha_vantage":
		default:
			return fmt.Errorf("unknown provider %q in providers.order", name)
		}
	}
	return nil
}

func splitSymbols(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, strings.ToUpper(s))
		}
	}
	return out
}
