package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline" envconfig:"PIPELINE"`
	Exchange ExchangeConfig `yaml:"exchange" envconfig:"EXCHANGE"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Paths    PathsConfig    `yaml:"paths" envconfig:"PATHS"`
}

// PipelineConfig contains the transform-and-consolidate settings
type PipelineConfig struct {
	BaseCurrency   string        `yaml:"base_currency" envconfig:"BASE_CURRENCY" validate:"required,len=3,uppercase"`
	TargetCurrency string        `yaml:"target_currency" envconfig:"TARGET_CURRENCY" validate:"required,len=3,uppercase"`
	FilePrefix     string        `yaml:"file_prefix" envconfig:"FILE_PREFIX" validate:"required"`
	RetentionDays  int           `yaml:"retention_days" envconfig:"RETENTION_DAYS" validate:"min=1"`
	LockTimeout    time.Duration `yaml:"lock_timeout" envconfig:"LOCK_TIMEOUT" validate:"min=1ms"`
}

// ExchangeConfig contains the exchange-rate API settings
type ExchangeConfig struct {
	APIURL  string        `yaml:"api_url" envconfig:"API_URL" validate:"required,url"`
	APIKey  string        `yaml:"api_key" envconfig:"API_KEY"`
	Timeout time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"min=1s"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	DataDir string `yaml:"data_dir" envconfig:"DATA_DIR" validate:"required"`
	LogsDir string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
}

// defaultConfig returns the built-in defaults. Defaults live here rather than
// in envconfig tags: envconfig re-applies tag defaults for every field whose
// env var is unset, which would clobber values already loaded from a file.
func defaultConfig() Config {
	return Config{
		Pipeline: PipelineConfig{
			BaseCurrency:   "USD",
			TargetCurrency: "GBP",
			FilePrefix:     "bank_assets",
			RetentionDays:  30,
			LockTimeout:    10 * time.Second,
		},
		Exchange: ExchangeConfig{
			APIURL:  "https://api.apilayer.com/exchangerates_data/latest",
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/pipeline.log",
		},
		Paths: PathsConfig{
			DataDir: "data",
			LogsDir: "logs",
		},
	}
}

// Load loads configuration with increasing precedence: built-in defaults,
// then the optional YAML file, then environment variables.
func Load(configFile string) (*Config, error) {
	cfg := defaultConfig()

	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			if err := loadFromFile(configFile, &cfg); err != nil {
				return nil, fmt.Errorf("failed to load config from file: %w", err)
			}
		}
	}

	if err := envconfig.Process("BANKFX", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile overlays YAML values onto cfg; keys absent from the file keep
// their current values.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// validate checks structural constraints on the loaded configuration
func (c *Config) validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return err
	}
	if c.Pipeline.BaseCurrency == c.Pipeline.TargetCurrency {
		return fmt.Errorf("base and target currency must differ, both are %s", c.Pipeline.BaseCurrency)
	}
	return nil
}
