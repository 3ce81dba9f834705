package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Augment    AugmentConfig    `yaml:"augment" mapstructure:"augment"`
	FactsAPI   FactsAPIConfig   `yaml:"factsapi" mapstructure:"factsapi"`
	Resilience ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AugmentConfig configures the LLM fact augmentation pipeline.
type AugmentConfig struct {
	// Enabled gates the whole augmentation path. Off by default: with the
	// flag off every lookup is served from deterministic data alone.
	Enabled        bool   `yaml:"enabled" mapstructure:"enabled"`
	MinConfidence  string `yaml:"min_confidence" mapstructure:"min_confidence"`
	CacheTTLDays   int    `yaml:"cache_ttl_days" mapstructure:"cache_ttl_days"`
	DailyCallLimit int    `yaml:"daily_call_limit" mapstructure:"daily_call_limit"`
	MaxBatchSize   int    `yaml:"max_batch_size" mapstructure:"max_batch_size"`
}

// FactsAPIConfig holds the external fact-retrieval API settings.
type FactsAPIConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Model       string  `yaml:"model" mapstructure:"model"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// ResilienceConfig tunes retries and the circuit breaker around provider
// calls. Zero values keep the built-in defaults.
type ResilienceConfig struct {
	RetryMaxAttempts        int `yaml:"retry_max_attempts" mapstructure:"retry_max_attempts"`
	RetryBackoffMs          int `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
	BreakerFailureThreshold int `yaml:"breaker_failure_threshold" mapstructure:"breaker_failure_threshold"`
	BreakerResetSecs        int `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// PricingConfig holds cost-estimation rates for budget reporting.
type PricingConfig struct {
	Facts FactsRate `yaml:"facts" mapstructure:"facts"`
}

// FactsRate prices one external fact-retrieval query.
type FactsRate struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
}

// ServerConfig configures the HTTP lookup server.
type ServerConfig struct {
	Port   int    `yaml:"port" mapstructure:"port"`
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

// MonitoringConfig configures background budget checks and webhook alerts.
type MonitoringConfig struct {
	// WebhookURL receives alert payloads. Empty disables delivery; alerts
	// are still logged.
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`

	CheckIntervalSecs int `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`

	// BudgetAlertThreshold is the fraction of the daily call budget at
	// which a warning fires.
	BudgetAlertThreshold float64 `yaml:"budget_alert_threshold" mapstructure:"budget_alert_threshold"`

	// DailySpendLimitUSD alerts when estimated spend crosses this amount.
	// Zero disables the spend alert.
	DailySpendLimitUSD float64 `yaml:"daily_spend_limit_usd" mapstructure:"daily_spend_limit_usd"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FUNDFACTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "fundfacts.db")
	v.SetDefault("augment.enabled", false)
	v.SetDefault("augment.min_confidence", "medium")
	v.SetDefault("augment.cache_ttl_days", 30)
	v.SetDefault("augment.daily_call_limit", 100)
	v.SetDefault("augment.max_batch_size", 10)
	v.SetDefault("factsapi.base_url", "https://api.perplexity.ai")
	v.SetDefault("factsapi.model", "sonar-pro")
	v.SetDefault("factsapi.max_tokens", 2048)
	v.SetDefault("factsapi.timeout_secs", 20)
	v.SetDefault("factsapi.rate_per_sec", 2)
	v.SetDefault("resilience.retry_max_attempts", 3)
	v.SetDefault("resilience.retry_backoff_ms", 500)
	v.SetDefault("resilience.breaker_failure_threshold", 5)
	v.SetDefault("resilience.breaker_reset_secs", 30)
	v.SetDefault("pricing.facts.per_query", 0.005)
	v.SetDefault("server.port", 8080)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.budget_alert_threshold", 0.8)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Augment.Enabled && c.FactsAPI.Key == "" {
		return eris.New("config: factsapi.key is required when augment.enabled is true")
	}
	switch c.Augment.MinConfidence {
	case "high", "medium":
	default:
		return eris.Errorf("config: invalid augment.min_confidence %q", c.Augment.MinConfidence)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
