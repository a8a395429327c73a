package infra

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"quant_go/internal/domain"
)

// Config holds everything the binaries read from configs/config.yaml.
// Environment variables override file values after loading.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Run struct {
		Symbol   string `yaml:"symbol"`
		Interval string `yaml:"interval"`
		Start    string `yaml:"start"` // YYYY-MM-DD
		End      string `yaml:"end"`
		Strategy string `yaml:"strategy"`

		Capital   float64 `yaml:"capital"`
		Size      int64   `yaml:"size"`
		PriceTick float64 `yaml:"price_tick"`

		// Commission mode: rate, fixed or per_unit. Rates are decimal
		// strings so the configured value survives exactly.
		CommissionMode    string  `yaml:"commission_mode"`
		CommissionRate    string  `yaml:"commission_rate"`
		CommissionFixed   float64 `yaml:"commission_fixed"`
		CommissionPerUnit string  `yaml:"commission_per_unit"`
		Slippage          string  `yaml:"slippage"`

		StopFillRule string `yaml:"stop_fill_rule"` // next_available or stop_price
		MarginRate   string `yaml:"margin_rate"`

		AnnualDays int     `yaml:"annual_days"`
		RiskFree   float64 `yaml:"risk_free"`

		// ReferenceTrace optionally points at a balance trace from
		// another implementation to compare against.
		ReferenceTrace string `yaml:"reference_trace"`
		ReportPath     string `yaml:"report_path"`
	} `yaml:"run"`

	Data struct {
		DBPath string `yaml:"db_path"`
	} `yaml:"data"`

	Ingest struct {
		WSURL    string   `yaml:"ws_url"`
		Symbols  []string `yaml:"symbols"`
		Interval string   `yaml:"interval"`
	} `yaml:"ingest"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and validates the configuration file. A missing
// file is not an error: defaults apply and flags or environment
// variables supply the rest.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}

	cfg.applyDefaults()
	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = AppName
	}
	if c.Run.Interval == "" {
		c.Run.Interval = "d"
	}
	if c.Run.Size == 0 {
		c.Run.Size = 1
	}
	if c.Run.CommissionMode == "" {
		c.Run.CommissionMode = "rate"
	}
	if c.Run.StopFillRule == "" {
		c.Run.StopFillRule = "next_available"
	}
	if c.Run.AnnualDays == 0 {
		c.Run.AnnualDays = 240
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Ingest.Interval == "" {
		c.Ingest.Interval = "1m"
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if _, ok := domain.ParseInterval(c.Run.Interval); !ok {
		return fmt.Errorf("invalid run interval: %s", c.Run.Interval)
	}
	if c.Run.Capital < 0 {
		return fmt.Errorf("capital must not be negative")
	}
	switch c.Run.CommissionMode {
	case "rate", "fixed", "per_unit":
	default:
		return fmt.Errorf("invalid commission mode: %s", c.Run.CommissionMode)
	}
	switch c.Run.StopFillRule {
	case "next_available", "stop_price":
	default:
		return fmt.Errorf("invalid stop fill rule: %s", c.Run.StopFillRule)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Ingest.WSURL != "" &&
		!strings.HasPrefix(c.Ingest.WSURL, "ws://") && !strings.HasPrefix(c.Ingest.WSURL, "wss://") {
		return fmt.Errorf("invalid ingest WS URL: %s", c.Ingest.WSURL)
	}
	if _, ok := domain.ParseInterval(c.Ingest.Interval); !ok {
		return fmt.Errorf("invalid ingest interval: %s", c.Ingest.Interval)
	}
	return nil
}

// overrideWithEnv applies environment overrides. The environment wins
// over the file so deployments can retarget data paths without edits.
func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("QUANT_DB_PATH"); v != "" {
		cfg.Data.DBPath = v
	}
	if v := os.Getenv("QUANT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("QUANT_WS_URL"); v != "" {
		cfg.Ingest.WSURL = v
	}
	if v := os.Getenv("QUANT_STRATEGY"); v != "" {
		cfg.Run.Strategy = v
	}
}
