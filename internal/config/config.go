package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"trends/scraper/internal/domain"
	"trends/scraper/internal/fetcher"
)

// Sink names accepted in output.sinks
const (
	SinkCSV      = "csv"
	SinkSQLite   = "sqlite"
	SinkPostgres = "postgres"
	SinkRedis    = "redis"
)

// Run modes accepted in run.mode
const (
	ModeTrends = "trends"
	ModeNews   = "news"
	ModeRetry  = "retry"
)

// Config holds all configuration for the application
type Config struct {
	Run      RunConfig      `mapstructure:"run"`
	Trends   TrendsConfig   `mapstructure:"trends"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Input    InputConfig    `mapstructure:"input"`
	Output   OutputConfig   `mapstructure:"output"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// RunConfig identifies a scraping run. Progress is saved under the run name.
type RunConfig struct {
	Name         string `mapstructure:"name"`
	Mode         string `mapstructure:"mode"` // trends, news, retry
	RetryWorkers int    `mapstructure:"retry_workers"`
}

// TrendsConfig holds remote API configuration
type TrendsConfig struct {
	BaseURL              string   `mapstructure:"base_url"`
	NewsURL              string   `mapstructure:"news_url"`
	Language             string   `mapstructure:"hl"`
	TimezoneOffset       int      `mapstructure:"tz"`
	Geo                  string   `mapstructure:"geo"`
	Timeframe            string   `mapstructure:"timeframe"`
	Timeout              int      `mapstructure:"timeout"`
	MaxWorkers           int      `mapstructure:"max_workers"`
	MaxRequestsPerSecond int      `mapstructure:"max_requests_per_second"`
	Proxies              []string `mapstructure:"proxies"`
	BatchSize            int      `mapstructure:"batch_size"`
	EmptySeriesLength    int      `mapstructure:"empty_series_length"`
	NewsPages            int      `mapstructure:"news_pages"`
}

// RetryConfig holds the backoff policy shared by every remote call
type RetryConfig struct {
	MaxRetries        int           `mapstructure:"max_retries"`
	BaseTimeout       time.Duration `mapstructure:"base_timeout"`
	Jitter            time.Duration `mapstructure:"jitter"`
	Escalation        time.Duration `mapstructure:"escalation"`
	PauseAfterSuccess bool          `mapstructure:"pause_after_success"`
	CountdownStep     time.Duration `mapstructure:"countdown_step"`
	MaxRequeues       int           `mapstructure:"max_requeues"`
}

// InputConfig describes the keyword source
type InputConfig struct {
	KeywordsFile string `mapstructure:"keywords_file"`
	SampleSize   int    `mapstructure:"sample_size"` // 0 = all keywords
}

// OutputConfig describes where outcomes are recorded
type OutputConfig struct {
	Dir              string   `mapstructure:"dir"`
	ResultsFile      string   `mapstructure:"results_file"`
	MetadataFile     string   `mapstructure:"metadata_file"`
	UnsuccessfulFile string   `mapstructure:"unsuccessful_file"`
	NewsFile         string   `mapstructure:"news_file"`
	Sinks            []string `mapstructure:"sinks"`
}

// SQLiteConfig holds the embedded ledger location
type SQLiteConfig struct {
	File string `mapstructure:"file"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// RedisConfig holds Redis connection details
type RedisConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Password      string `mapstructure:"password"`
	Database      int    `mapstructure:"database"`
	ConsumerGroup string `mapstructure:"consumer_group"`
	MinIdleTime   int    `mapstructure:"min_idle_time"`
}

// MetricsConfig holds the metrics endpoint settings
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// DSN returns the connection string of the database.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Name)
}

// Policy returns the retry policy described by the configuration.
func (c RetryConfig) Policy() fetcher.Policy {
	return fetcher.Policy{
		MaxRetries:        c.MaxRetries,
		BaseTimeout:       c.BaseTimeout,
		Jitter:            c.Jitter,
		Escalation:        c.Escalation,
		PauseAfterSuccess: c.PauseAfterSuccess,
	}
}

// HasSink reports whether the named sink is enabled.
func (c OutputConfig) HasSink(name string) bool {
	return slices.Contains(c.Sinks, name)
}

// Load loads configuration from a YAML file with environment variable overrides. An empty
// path searches config.yaml in the current directory and falls back to defaults when there is
// none.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if err := c.Retry.Policy().Validate(); err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	if c.Trends.BatchSize < 1 || c.Trends.BatchSize > domain.DefaultBatchSize {
		return fmt.Errorf("trends.batch_size must be in [1, %d]", domain.DefaultBatchSize)
	}
	if c.Trends.EmptySeriesLength < 0 {
		return fmt.Errorf("trends.empty_series_length can't be < 0")
	}
	if c.Trends.MaxWorkers < 1 {
		return fmt.Errorf("trends.max_workers can't be < 1")
	}
	for _, s := range c.Output.Sinks {
		switch s {
		case SinkCSV, SinkSQLite, SinkPostgres, SinkRedis:
		default:
			return fmt.Errorf("unknown output sink %q", s)
		}
	}
	switch c.Run.Mode {
	case ModeTrends, ModeNews, ModeRetry:
	default:
		return fmt.Errorf("unknown run mode %q", c.Run.Mode)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("run.name", "gtrends")
	v.SetDefault("run.mode", ModeTrends)
	v.SetDefault("run.retry_workers", 1)

	v.SetDefault("trends.base_url", "https://trends.google.com")
	v.SetDefault("trends.news_url", "https://www.google.com")
	v.SetDefault("trends.hl", "en-US")
	v.SetDefault("trends.tz", 360)
	v.SetDefault("trends.geo", "")
	v.SetDefault("trends.timeframe", "today 5-y")
	v.SetDefault("trends.timeout", 30)
	v.SetDefault("trends.max_workers", 1)
	v.SetDefault("trends.max_requests_per_second", 1)
	v.SetDefault("trends.proxies", []string{})
	v.SetDefault("trends.batch_size", 5)
	v.SetDefault("trends.empty_series_length", 261)
	v.SetDefault("trends.news_pages", 1)

	v.SetDefault("retry.max_retries", 1)
	v.SetDefault("retry.base_timeout", 20*time.Second)
	v.SetDefault("retry.jitter", 3*time.Second)
	v.SetDefault("retry.escalation", time.Duration(0))
	v.SetDefault("retry.pause_after_success", true)
	v.SetDefault("retry.countdown_step", 2*time.Second)
	v.SetDefault("retry.max_requeues", 3)

	v.SetDefault("input.keywords_file", "./data/interim/keywords.csv")
	v.SetDefault("input.sample_size", 0)

	v.SetDefault("output.dir", "./data/raw")
	v.SetDefault("output.results_file", "gtrends.csv")
	v.SetDefault("output.metadata_file", "gtrends_metadata.csv")
	v.SetDefault("output.unsuccessful_file", "unsuccessful_queries.csv")
	v.SetDefault("output.news_file", "news.csv")
	v.SetDefault("output.sinks", []string{SinkCSV})

	v.SetDefault("sqlite.file", "./data/raw/gtrends.db")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "gtrends")
	v.SetDefault("database.user", "gtrends_user")
	v.SetDefault("database.password", "gtrends_pass")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.consumer_group", "gtrends_consumer")
	v.SetDefault("redis.min_idle_time", 120)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}
