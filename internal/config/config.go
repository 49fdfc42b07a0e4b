// Package config loads and validates enricher configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Prompts   PromptsConfig   `mapstructure:"prompts"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Callback  CallbackConfig  `mapstructure:"callback"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	RequestTimeoutSeconds  int `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// AuthConfig holds the shared bearer secret for protected routes.
type AuthConfig struct {
	Secret string `mapstructure:"secret"`
}

// CrawlerConfig governs the probe fetch and extraction step.
type CrawlerConfig struct {
	UserAgent       string  `mapstructure:"user_agent"`
	TimeoutSeconds  int     `mapstructure:"timeout_seconds"`
	IgnoreRobots    bool    `mapstructure:"ignore_robots"`
	RatePerSecond   float64 `mapstructure:"rate_per_second"`
	RateBurst       int     `mapstructure:"rate_burst"`
	MinContentChars int     `mapstructure:"min_content_chars"`
}

// HeadlessConfig configures chromedp promotion for thin pages.
type HeadlessConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxParallel   int  `mapstructure:"max_parallel"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
}

// LLMConfig selects the model provider and request limits.
type LLMConfig struct {
	Source           string  `mapstructure:"source"`
	BaseURL          string  `mapstructure:"base_url"`
	GroqAPIKey       string  `mapstructure:"groq_api_key"`
	GroqModel        string  `mapstructure:"groq_model"`
	OpenRouterAPIKey string  `mapstructure:"openrouter_api_key"`
	OpenRouterModel  string  `mapstructure:"openrouter_model"`
	OpenAIAPIKey     string  `mapstructure:"openai_api_key"`
	OpenAIModel      string  `mapstructure:"openai_model"`
	MaxTokens        int     `mapstructure:"max_tokens"`
	Temperature      float32 `mapstructure:"temperature"`
	TimeoutSeconds   int     `mapstructure:"timeout_seconds"`
	Encoding         string  `mapstructure:"encoding"`
	SiteURL          string  `mapstructure:"site_url"`
	AppName          string  `mapstructure:"app_name"`
}

// PromptsConfig carries the system prompt per pipeline stage.
type PromptsConfig struct {
	Detail   string `mapstructure:"detail"`
	Tags     string `mapstructure:"tags"`
	Language string `mapstructure:"language"`
}

// StorageConfig selects the record store backend.
type StorageConfig struct {
	Backend  string         `mapstructure:"backend"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
}

// PostgresConfig controls access to the relational store.
type PostgresConfig struct {
	DSN             string `mapstructure:"dsn"`
	SitesTable      string `mapstructure:"sites_table"`
	SubmissionTable string `mapstructure:"submissions_table"`
	MaxConns        int32  `mapstructure:"max_conns"`
}

// MongoConfig controls access to the document store.
type MongoConfig struct {
	URI             string `mapstructure:"uri"`
	Database        string `mapstructure:"database"`
	SitesColl       string `mapstructure:"sites_collection"`
	SubmissionsColl string `mapstructure:"submissions_collection"`
}

// ArchiveConfig sets where raw HTML snapshots are written.
type ArchiveConfig struct {
	Backend     string `mapstructure:"backend"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	LocalDir    string `mapstructure:"local_dir"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// PubSubConfig holds metadata for enrichment notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// QueueConfig controls how queued submissions are enriched.
type QueueConfig struct {
	DefaultLimit int      `mapstructure:"default_limit"`
	Languages    []string `mapstructure:"languages"`
	Tags         []string `mapstructure:"tags"`
	UseCache     bool     `mapstructure:"use_cache"`
}

// SchedulerConfig controls the periodic drain.
type SchedulerConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	IntervalMinutes int    `mapstructure:"interval_minutes"`
	BatchLimit      int    `mapstructure:"batch_limit"`
	OrderBy         string `mapstructure:"order_by"`
	SingleFlight    bool   `mapstructure:"single_flight"`
}

// CallbackConfig sizes the async crawl worker pool.
type CallbackConfig struct {
	Workers               int `mapstructure:"workers"`
	QueueDepth            int `mapstructure:"queue_depth"`
	EnqueueTimeoutSeconds int `mapstructure:"enqueue_timeout_seconds"`
	TimeoutSeconds        int `mapstructure:"timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// legacyEnv maps config keys onto the environment names used by earlier
// deployments of the service.
var legacyEnv = map[string]string{
	"auth.secret":            "AUTH_SECRET",
	"llm.source":             "API_SOURCE",
	"llm.groq_api_key":       "GROQ_API_KEY",
	"llm.groq_model":         "GROQ_MODEL",
	"llm.openrouter_api_key": "OPENROUTER_API_KEY",
	"llm.openrouter_model":   "OPENROUTER_MODEL",
	"llm.openai_api_key":     "OPENAI_API_KEY",
	"llm.max_tokens":         "GROQ_MAX_TOKENS",
	"llm.site_url":           "SITE_URL",
	"llm.app_name":           "APP_NAME",
	"prompts.detail":         "DETAIL_SYS_PROMPT",
	"prompts.tags":           "TAG_SELECTOR_SYS_PROMPT",
	"prompts.language":       "LANGUAGE_SYS_PROMPT",
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ENRICHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	for key, env := range legacyEnv {
		prefixed := "ENRICHER_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 300)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("crawler.user_agent", "site-enricher/0.1")
	v.SetDefault("crawler.timeout_seconds", 20)
	v.SetDefault("crawler.ignore_robots", false)
	v.SetDefault("crawler.rate_per_second", 1.0)
	v.SetDefault("crawler.rate_burst", 1)
	v.SetDefault("crawler.min_content_chars", 200)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("llm.source", "openrouter")
	v.SetDefault("llm.groq_model", "llama-3.1-8b-instant")
	v.SetDefault("llm.openrouter_model", "openai/gpt-4o-mini")
	v.SetDefault("llm.openai_model", "gpt-4o-mini")
	v.SetDefault("llm.max_tokens", 5000)
	v.SetDefault("llm.temperature", 1.0)
	v.SetDefault("llm.timeout_seconds", 60)
	v.SetDefault("llm.encoding", "cl100k_base")
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.postgres.sites_table", "sites")
	v.SetDefault("storage.postgres.submissions_table", "submit_site")
	v.SetDefault("storage.postgres.max_conns", 4)
	v.SetDefault("storage.mongo.database", "enricher")
	v.SetDefault("storage.mongo.sites_collection", "sites")
	v.SetDefault("storage.mongo.submissions_collection", "submit_site")
	v.SetDefault("archive.backend", "none")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("archive.content_type", "text/html; charset=utf-8")
	v.SetDefault("pubsub.enabled", false)
	v.SetDefault("pubsub.topic_name", "site.enriched")
	v.SetDefault("queue.default_limit", 10)
	v.SetDefault("queue.languages", []string{})
	v.SetDefault("queue.tags", []string{})
	v.SetDefault("queue.use_cache", false)
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval_minutes", 10)
	v.SetDefault("scheduler.batch_limit", 50)
	v.SetDefault("scheduler.order_by", "submit_time")
	v.SetDefault("scheduler.single_flight", true)
	v.SetDefault("callback.workers", 4)
	v.SetDefault("callback.queue_depth", 64)
	v.SetDefault("callback.enqueue_timeout_seconds", 2)
	v.SetDefault("callback.timeout_seconds", 30)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret must be set")
	}
	if c.Crawler.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.timeout_seconds must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	switch c.LLM.Source {
	case "openrouter", "groq", "openai":
	default:
		return fmt.Errorf("llm.source %q must be one of openrouter, groq, openai", c.LLM.Source)
	}
	if c.LLM.APIKey() == "" {
		return fmt.Errorf("api key for llm.source %q must be set", c.LLM.Source)
	}
	if c.LLM.MaxTokens < 0 {
		return fmt.Errorf("llm.max_tokens must be >= 0")
	}
	switch c.Storage.Backend {
	case "memory":
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn must be set for the postgres backend")
		}
	case "mongo":
		if c.Storage.Mongo.URI == "" {
			return fmt.Errorf("storage.mongo.uri must be set for the mongo backend")
		}
	default:
		return fmt.Errorf("storage.backend %q must be one of memory, postgres, mongo", c.Storage.Backend)
	}
	switch c.Archive.Backend {
	case "none", "memory":
	case "local":
		if c.Archive.LocalDir == "" {
			return fmt.Errorf("archive.local_dir must be set for the local archive")
		}
	case "gcs":
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket must be set for the gcs archive")
		}
	default:
		return fmt.Errorf("archive.backend %q must be one of none, memory, local, gcs", c.Archive.Backend)
	}
	if c.PubSub.Enabled && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub is enabled")
	}
	if c.Scheduler.Enabled && c.Scheduler.IntervalMinutes <= 0 {
		return fmt.Errorf("scheduler.interval_minutes must be > 0 when the scheduler is enabled")
	}
	if c.Callback.Workers <= 0 {
		return fmt.Errorf("callback.workers must be > 0")
	}
	if c.Callback.QueueDepth <= 0 {
		return fmt.Errorf("callback.queue_depth must be > 0")
	}
	return nil
}

// APIKey returns the key for the selected model source.
func (l LLMConfig) APIKey() string {
	switch l.Source {
	case "groq":
		return l.GroqAPIKey
	case "openai":
		return l.OpenAIAPIKey
	default:
		return l.OpenRouterAPIKey
	}
}

// Model returns the model name for the selected source.
func (l LLMConfig) Model() string {
	switch l.Source {
	case "groq":
		return l.GroqModel
	case "openai":
		return l.OpenAIModel
	default:
		return l.OpenRouterModel
	}
}

// Timeout converts llm.timeout_seconds into a duration.
func (l LLMConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// Interval converts scheduler.interval_minutes into a duration.
func (s SchedulerConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMinutes) * time.Minute
}

// EnqueueTimeout converts callback.enqueue_timeout_seconds into a duration.
func (c CallbackConfig) EnqueueTimeout() time.Duration {
	return time.Duration(c.EnqueueTimeoutSeconds) * time.Second
}

// Timeout converts callback.timeout_seconds into a duration.
func (c CallbackConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
