package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Jina      JinaConfig      `yaml:"jina" mapstructure:"jina"`
	Crawl     CrawlConfig     `yaml:"crawl" mapstructure:"crawl"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Selection SelectionConfig `yaml:"selection" mapstructure:"selection"`
	Scoring   ScoringConfig   `yaml:"scoring" mapstructure:"scoring"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the local repository backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	Model       string  `yaml:"model" mapstructure:"model"`
	MaxTokens   int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxAttempts int     `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// SearchConfig configures the web search provider.
type SearchConfig struct {
	Provider        string `yaml:"provider" mapstructure:"provider"`
	GoogleKey       string `yaml:"google_key" mapstructure:"google_key"`
	GoogleCX        string `yaml:"google_cx" mapstructure:"google_cx"`
	GoogleBaseURL   string `yaml:"google_base_url" mapstructure:"google_base_url"`
	PerMinute       int    `yaml:"per_minute" mapstructure:"per_minute"`
	MinIntervalMS   int    `yaml:"min_interval_ms" mapstructure:"min_interval_ms"`
	MaxResults      int    `yaml:"max_results" mapstructure:"max_results"`
	MaxRetries      int    `yaml:"max_retries" mapstructure:"max_retries"`
	BackoffBaseSecs int    `yaml:"backoff_base_secs" mapstructure:"backoff_base_secs"`
}

// JinaConfig holds Jina search settings (alternate search provider).
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// CrawlConfig configures the page fetcher.
type CrawlConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	CacheTTLHours     int     `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	MaxBodyBytes      int64   `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
	MaxAttempts       int     `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// PipelineConfig configures the discovery loop.
type PipelineConfig struct {
	Target               int     `yaml:"target" mapstructure:"target"`
	MaxSearchURLs        int     `yaml:"max_search_urls" mapstructure:"max_search_urls"`
	MaxProfileURLs       int     `yaml:"max_profile_urls" mapstructure:"max_profile_urls"`
	EarlyExitFactor      int     `yaml:"early_exit_factor" mapstructure:"early_exit_factor"`
	AllowStudentPostdoc  bool    `yaml:"allow_student_postdoc" mapstructure:"allow_student_postdoc"`
	LocalQueryLimit      int     `yaml:"local_query_limit" mapstructure:"local_query_limit"`
	CachePruneAfter      int     `yaml:"cache_prune_after" mapstructure:"cache_prune_after"`
	CachePruneMaxEntries int     `yaml:"cache_prune_max_entries" mapstructure:"cache_prune_max_entries"`
	KeepScoreFloor       float64 `yaml:"keep_score_floor" mapstructure:"keep_score_floor"`
	KeepPIScoreFloor     float64 `yaml:"keep_pi_score_floor" mapstructure:"keep_pi_score_floor"`
}

// SelectionConfig configures final diversity selection.
type SelectionConfig struct {
	MaxPerInstitution      int `yaml:"max_per_institution" mapstructure:"max_per_institution"`
	FreeTierN              int `yaml:"free_tier_n" mapstructure:"free_tier_n"`
	FreeTierCap            int `yaml:"free_tier_cap" mapstructure:"free_tier_cap"`
	FreeTierMinInstitution int `yaml:"free_tier_min_institutions" mapstructure:"free_tier_min_institutions"`
}

// ScoringConfig holds the rule-based scoring constants.
type ScoringConfig struct {
	CoreThreshold     float64 `yaml:"core_threshold" mapstructure:"core_threshold"`
	AdjacentThreshold float64 `yaml:"adjacent_threshold" mapstructure:"adjacent_threshold"`
	CoreWeight        float64 `yaml:"core_weight" mapstructure:"core_weight"`
	AdjacentWeight    float64 `yaml:"adjacent_weight" mapstructure:"adjacent_weight"`
	EmailBonus        float64 `yaml:"email_bonus" mapstructure:"email_bonus"`
	HighEmailBonus    float64 `yaml:"high_email_bonus" mapstructure:"high_email_bonus"`
	RetierPercentile  float64 `yaml:"retier_percentile" mapstructure:"retier_percentile"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, ./config.yaml and environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path falls back to
// an optional config.yaml in the working directory; a named file must exist.
func LoadFile(path string) (*Config, error) {
	// .env is optional; variables already set in the process win.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("SUPERVISOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "data/supervisors.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("anthropic.temperature", 0.1)
	v.SetDefault("anthropic.max_attempts", 3)
	v.SetDefault("search.provider", "google")
	v.SetDefault("search.google_base_url", "https://www.googleapis.com")
	v.SetDefault("search.per_minute", 100)
	v.SetDefault("search.min_interval_ms", 650)
	v.SetDefault("search.max_results", 50)
	v.SetDefault("search.max_retries", 3)
	v.SetDefault("search.backoff_base_secs", 5)
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("crawl.requests_per_second", 1.0)
	v.SetDefault("crawl.timeout_secs", 30)
	v.SetDefault("crawl.cache_ttl_hours", 168)
	v.SetDefault("crawl.max_body_bytes", 2<<20)
	v.SetDefault("crawl.user_agent", "Mozilla/5.0 (compatible; supervisor-cli/1.0)")
	v.SetDefault("crawl.max_attempts", 3)
	v.SetDefault("pipeline.target", 100)
	v.SetDefault("pipeline.max_search_urls", 30)
	v.SetDefault("pipeline.max_profile_urls", 200)
	v.SetDefault("pipeline.early_exit_factor", 2)
	v.SetDefault("pipeline.local_query_limit", 800)
	v.SetDefault("pipeline.cache_prune_after", 10)
	v.SetDefault("pipeline.cache_prune_max_entries", 500)
	v.SetDefault("pipeline.keep_score_floor", 0.15)
	v.SetDefault("pipeline.keep_pi_score_floor", 0.05)
	v.SetDefault("selection.max_per_institution", 10)
	v.SetDefault("selection.free_tier_n", 10)
	v.SetDefault("selection.free_tier_cap", 1)
	v.SetDefault("selection.free_tier_min_institutions", 3)
	v.SetDefault("scoring.core_threshold", 0.35)
	v.SetDefault("scoring.adjacent_threshold", 0.2)
	v.SetDefault("scoring.core_weight", 0.1)
	v.SetDefault("scoring.adjacent_weight", 0.05)
	v.SetDefault("scoring.email_bonus", 0.1)
	v.SetDefault("scoring.high_email_bonus", 0.05)
	v.SetDefault("scoring.retier_percentile", 0.35)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings required by the given command mode.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "run":
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
		switch c.Search.Provider {
		case "google":
			if c.Search.GoogleKey == "" || c.Search.GoogleCX == "" {
				problems = append(problems, "search.google_key and search.google_cx are required")
			}
		case "jina":
			if c.Jina.Key == "" {
				problems = append(problems, "jina.key is required")
			}
		default:
			problems = append(problems, "search.provider must be google or jina")
		}
		if c.Pipeline.Target < 1 {
			problems = append(problems, "pipeline.target must be > 0")
		}
	case "profile":
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "query":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required for postgres")
	}
	if c.Scoring.CoreThreshold < 0 || c.Scoring.CoreThreshold > 1 {
		problems = append(problems, "scoring.core_threshold must be between 0 and 1")
	}
	if c.Selection.MaxPerInstitution < 0 {
		problems = append(problems, "selection.max_per_institution must be >= 0")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
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
