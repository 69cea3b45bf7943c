package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	ORCID      ORCIDConfig      `yaml:"orcid" mapstructure:"orcid"`
	OpenAlex   OpenAlexConfig   `yaml:"openalex" mapstructure:"openalex"`
	Pace       PaceConfig       `yaml:"pace" mapstructure:"pace"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Ingest     IngestConfig     `yaml:"ingest" mapstructure:"ingest"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Export     ExportConfig     `yaml:"export" mapstructure:"export"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the Postgres connection.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ORCIDConfig configures the identity registry client.
type ORCIDConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// OpenAlexConfig configures the publication registry client.
type OpenAlexConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Mailto      string `yaml:"mailto" mapstructure:"mailto"`
	PerPage     int    `yaml:"per_page" mapstructure:"per_page"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// PaceConfig sets the courtesy delay after every registry call.
type PaceConfig struct {
	DelayMS int `yaml:"delay_ms" mapstructure:"delay_ms"`
}

// CacheConfig configures the local registry response cache. An empty path
// disables caching.
type CacheConfig struct {
	Path     string `yaml:"path" mapstructure:"path"`
	TTLHours int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// IngestConfig configures batch ingestion.
type IngestConfig struct {
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
	SeedsPath   string `yaml:"seeds_path" mapstructure:"seeds_path"`
}

// ScoringConfig locates the weights document and the recompute schedule.
type ScoringConfig struct {
	WeightsPath       string `yaml:"weights_path" mapstructure:"weights_path"`
	TaxonomyPath      string `yaml:"taxonomy_path" mapstructure:"taxonomy_path"`
	RecomputeSchedule string `yaml:"recompute_schedule" mapstructure:"recompute_schedule"`
}

// ServerConfig configures the read API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// ExportConfig configures the S3 profile sink. Empty keys fall back to the
// default AWS credential chain.
type ExportConfig struct {
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	Prefix          string `yaml:"prefix" mapstructure:"prefix"`
	Region          string `yaml:"region" mapstructure:"region"`
	Endpoint        string `yaml:"endpoint" mapstructure:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" mapstructure:"secret_access_key"`
}

// MonitoringConfig configures the alert checker run by serve.
type MonitoringConfig struct {
	Enabled               bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL            string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs     int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	FailureRateThreshold  float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	PendingMergeThreshold int     `yaml:"pending_merge_threshold" mapstructure:"pending_merge_threshold"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SCHOLAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("orcid.base_url", "https://pub.orcid.org/v3.0")
	v.SetDefault("orcid.timeout_secs", 30)
	v.SetDefault("openalex.base_url", "https://api.openalex.org")
	v.SetDefault("openalex.mailto", "")
	v.SetDefault("openalex.per_page", 200)
	v.SetDefault("openalex.timeout_secs", 30)
	v.SetDefault("pace.delay_ms", 1000)
	v.SetDefault("cache.path", "scholar-cache.db")
	v.SetDefault("cache.ttl_hours", 168)
	v.SetDefault("ingest.concurrency", 1)
	v.SetDefault("ingest.seeds_path", "faculty.json")
	v.SetDefault("scoring.weights_path", "weights.yaml")
	v.SetDefault("scoring.taxonomy_path", "fields.yaml")
	v.SetDefault("scoring.recompute_schedule", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("export.bucket", "")
	v.SetDefault("export.prefix", "profiles/")
	v.SetDefault("export.region", "us-east-1")
	v.SetDefault("export.endpoint", "")
	v.SetDefault("export.access_key_id", "")
	v.SetDefault("export.secret_access_key", "")
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.pending_merge_threshold", 50)
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

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is the command name;
// every command except "weights" needs a database.
func (c *Config) Validate(mode string) error {
	var errs []string

	if mode != "weights" && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	if c.Pace.DelayMS < 0 {
		errs = append(errs, "pace.delay_ms must be >= 0")
	}

	switch mode {
	case "ingest":
		if c.Ingest.Concurrency < 1 {
			errs = append(errs, "ingest.concurrency must be >= 1")
		}
	case "serve":
		if c.Server.Port < 1 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be between 1 and 65535")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
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
