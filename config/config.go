package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Supabase   SupabaseConfig
	Search     SearchConfig
	Render     RenderConfig
	Oracle     OracleConfig
	Snapshot   SnapshotConfig
	Scheduler  SchedulerConfig
	Scanner    ScannerConfig
	DBPath     string
	ListenAddr string
	LogLevel   string
}

type SupabaseConfig struct {
	DBURL string
}

// SearchConfig points at a Serper-style web-search API.
type SearchConfig struct {
	APIKey  string
	BaseURL string
}

// RenderConfig points at a Browserless-style remote headless-browser service.
// The websocket endpoint carries the bot-bypass ("unblock") session; the HTTP
// base serves the plain content tier.
type RenderConfig struct {
	Token      string
	WSEndpoint string
	HTTPBase   string
}

// OracleConfig points at an OpenAI-compatible chat-completions API used for
// structured extraction.
type OracleConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type SnapshotConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

type SchedulerConfig struct {
	Cron     string
	Interval time.Duration
}

// ScannerConfig holds scan-pipeline tuning. Defaults match the reference
// policy; an optional config/scanner.yaml overrides individual fields.
type ScannerConfig struct {
	MinHTMLLength        int           `yaml:"min_html_length"`
	TextBudget           int           `yaml:"text_budget"`
	NavTimeout           time.Duration `yaml:"nav_timeout"`
	MinSampleSize        int           `yaml:"min_sample_size"`
	LowPriorityRate      float64       `yaml:"low_priority_rate"`
	StaleAfter           time.Duration `yaml:"stale_after"`
	SnapshotTTL          time.Duration `yaml:"snapshot_ttl"`
	AggregatorDelayMinMS int           `yaml:"aggregator_delay_min_ms"`
	AggregatorDelayMaxMS int           `yaml:"aggregator_delay_max_ms"`
	ClickSelectors       []string      `yaml:"click_selectors"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Supabase: SupabaseConfig{
			DBURL: os.Getenv("SUPABASE_DB_URL"),
		},
		Search: SearchConfig{
			APIKey:  os.Getenv("SEARCH_API_KEY"),
			BaseURL: getEnv("SEARCH_API_URL", "https://google.serper.dev/search"),
		},
		Render: RenderConfig{
			Token:      os.Getenv("RENDER_TOKEN"),
			WSEndpoint: getEnv("RENDER_WS_ENDPOINT", "wss://chrome.browserless.io"),
			HTTPBase:   getEnv("RENDER_HTTP_URL", "https://chrome.browserless.io"),
		},
		Oracle: OracleConfig{
			APIKey:  getEnv("EXTRACT_API_KEY", os.Getenv("OPENAI_API_KEY")),
			BaseURL: getEnv("EXTRACT_API_URL", "https://api.openai.com/v1/chat/completions"),
			Model:   getEnv("EXTRACT_MODEL", "gpt-4o-mini"),
		},
		Snapshot: SnapshotConfig{
			Bucket:          os.Getenv("SNAPSHOT_S3_BUCKET"),
			Region:          getEnv("SNAPSHOT_S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("SNAPSHOT_S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("SNAPSHOT_S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("SNAPSHOT_S3_SECRET_ACCESS_KEY"),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("SCAN_CRON"),
		},
		Scanner:    DefaultScannerConfig(),
		DBPath:     getEnv("DB_PATH", "scanner.db"),
		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
	}

	if interval := os.Getenv("SCAN_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if err := cfg.loadScannerOverrides("config/scanner.yaml"); err != nil {
		return nil, err
	}

	return cfg, nil
}

func DefaultScannerConfig() ScannerConfig {
	return ScannerConfig{
		MinHTMLLength:        1500,
		TextBudget:           18000,
		NavTimeout:           40 * time.Second,
		MinSampleSize:        10,
		LowPriorityRate:      0.10,
		StaleAfter:           24 * time.Hour,
		SnapshotTTL:          6 * time.Hour,
		AggregatorDelayMinMS: 2000,
		AggregatorDelayMaxMS: 5000,
		ClickSelectors: []string{
			"button[class*='floorplan']",
			"button[class*='floor-plan']",
			"a[class*='floorplan']",
			"button[class*='availability']",
			"[data-selenium-id*='floorplan']",
			".fp-expand",
			"button[aria-label*='View']",
			"a[href*='#availability']",
		},
	}
}

func (c *Config) loadScannerOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := yaml.Unmarshal(data, &c.Scanner); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// Validate checks the credentials required before anything can run. Vendor
// keys that only one scan path needs are checked at dispatch time instead.
func (c *Config) Validate() error {
	if c.Supabase.DBURL == "" {
		return fmt.Errorf("SUPABASE_DB_URL not set")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
