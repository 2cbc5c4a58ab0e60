package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/lead-intel/internal/classifier"
	"github.com/sells-group/lead-intel/internal/scorer"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig           `yaml:"store" mapstructure:"store"`
	Log        LogConfig             `yaml:"log" mapstructure:"log"`
	Catalog    CatalogConfig         `yaml:"catalog" mapstructure:"catalog"`
	Classifier classifier.Thresholds `yaml:"classifier" mapstructure:"classifier"`
	Inference  InferenceConfig       `yaml:"inference" mapstructure:"inference"`
	Priority   scorer.PriorityConfig `yaml:"priority" mapstructure:"priority"`
	Batch      BatchConfig           `yaml:"batch" mapstructure:"batch"`
}

// StoreConfig configures the lead database backend.
type StoreConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL   string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns      int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns      int32  `yaml:"min_conns" mapstructure:"min_conns"`
	WriteAttempts int    `yaml:"write_attempts" mapstructure:"write_attempts"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// CatalogConfig points at the product rule catalog. An empty path selects
// the catalog compiled into the binary.
type CatalogConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// InferenceConfig configures product inference for signals that arrive
// without a product code.
type InferenceConfig struct {
	MinConfidence float64 `yaml:"min_confidence" mapstructure:"min_confidence"`
	MaxProducts   int     `yaml:"max_products" mapstructure:"max_products"`
}

// BatchConfig configures batch scoring.
type BatchConfig struct {
	MaxConcurrent int     `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	RatePerSec    float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst         int     `yaml:"burst" mapstructure:"burst"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADINTEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "lead-intel.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("store.write_attempts", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("catalog.path", "")
	v.SetDefault("classifier.auto_assign_threshold", classifier.DefaultAutoAssignThreshold)
	v.SetDefault("classifier.qualified_threshold", classifier.DefaultQualifiedThreshold)
	v.SetDefault("inference.min_confidence", 0.4)
	v.SetDefault("inference.max_products", 3)
	v.SetDefault("priority.intent_weight", scorer.DefaultIntentWeight)
	v.SetDefault("priority.freshness_weight", scorer.DefaultFreshnessWeight)
	v.SetDefault("priority.size_weight", scorer.DefaultSizeWeight)
	v.SetDefault("priority.geography_weight", scorer.DefaultGeographyWeight)
	v.SetDefault("priority.decay_rate", scorer.DefaultDecayRate)
	v.SetDefault("priority.territory", "")
	v.SetDefault("batch.max_concurrent", 8)
	v.SetDefault("batch.rate_per_sec", 0)
	v.SetDefault("batch.burst", 1)

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

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes are
// "score" (catalog, classifier, inference), "store" (score plus a
// database) and "batch" (store plus batch limits).
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "score":
		errs = c.validateScore(errs)
	case "store":
		errs = c.validateScore(errs)
		errs = c.validateStore(errs)
	case "batch":
		errs = c.validateScore(errs)
		errs = c.validateStore(errs)
		errs = c.validateBatch(errs)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateScore(errs []string) []string {
	if err := c.Classifier.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Inference.MinConfidence < 0 || c.Inference.MinConfidence > 1 {
		errs = append(errs, fmt.Sprintf("inference.min_confidence must be between 0 and 1, got %v", c.Inference.MinConfidence))
	}
	if c.Inference.MaxProducts < 1 {
		errs = append(errs, "inference.max_products must be >= 1")
	}
	if err := c.Priority.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	return errs
}

func (c *Config) validateStore(errs []string) []string {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	if c.Store.MinConns < 0 || (c.Store.MaxConns > 0 && c.Store.MinConns > c.Store.MaxConns) {
		errs = append(errs, "store.min_conns must be between 0 and store.max_conns")
	}
	if c.Store.WriteAttempts < 1 {
		errs = append(errs, "store.write_attempts must be >= 1")
	}
	return errs
}

func (c *Config) validateBatch(errs []string) []string {
	if c.Batch.MaxConcurrent < 1 || c.Batch.MaxConcurrent > 64 {
		errs = append(errs, "batch.max_concurrent must be between 1 and 64")
	}
	if c.Batch.RatePerSec < 0 {
		errs = append(errs, "batch.rate_per_sec must be >= 0")
	}
	if c.Batch.RatePerSec > 0 && c.Batch.Burst < 1 {
		errs = append(errs, "batch.burst must be >= 1 when rate_per_sec is set")
	}
	return errs
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
