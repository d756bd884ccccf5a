package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	LLM       LLMConfig
	Search    SearchConfig
	Scraper   ScraperConfig
	Store     StoreConfig
	Results   ResultsConfig
	Archive   ArchiveConfig
	Worker    WorkerConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	LogFormat string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string // empty disables authentication
}

type RateLimitConfig struct {
	SearchPerHour int
	AskPerMin     int
}

type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type SearchConfig struct {
	Provider      string // "duckduckgo" or "mock"
	BaseURL       string
	NumResults    int
	ExcludedHosts []string
	SyncTimeout   time.Duration
	JobTTL        time.Duration
}

type ScraperConfig struct {
	UserAgent         string
	Timeout           time.Duration
	MinContentLength  int
	RequestsPerSecond float64
	Concurrency       int
}

type StoreConfig struct {
	Path string
}

type ResultsConfig struct {
	RetentionDays int // 0 disables the sweeper
	SweepSchedule string
}

type ArchiveConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
}

// Enabled reports whether raw page archiving is configured.
func (c ArchiveConfig) Enabled() bool {
	return c.Bucket != "" && c.AccessKeyID != "" && c.SecretAccessKey != ""
}

type WorkerConfig struct {
	Concurrency int
	MaxRetry    int
}

func Load() (*Config, error) {
	// .env is optional and never overrides the real environment
	_ = godotenv.Load()

	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("LLM_API_KEY")
	readSecret("JWT_SECRET")
	readSecret("ARCHIVE_ACCESS_KEY_ID")
	readSecret("ARCHIVE_SECRET_ACCESS_KEY")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables
	v.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.env", "SERVER_ENV")
	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("server.log_format", "LOG_FORMAT")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	_ = v.BindEnv("ratelimit.search_per_hour", "RATELIMIT_SEARCH_PER_HOUR")
	_ = v.BindEnv("ratelimit.ask_per_min", "RATELIMIT_ASK_PER_MIN")
	_ = v.BindEnv("llm.api_key", "LLM_API_KEY")
	_ = v.BindEnv("llm.base_url", "LLM_BASE_URL")
	_ = v.BindEnv("llm.model", "LLM_MODEL")
	_ = v.BindEnv("search.provider", "SEARCH_PROVIDER")
	_ = v.BindEnv("search.base_url", "SEARCH_BASE_URL")
	_ = v.BindEnv("search.num_results", "SEARCH_NUM_RESULTS")
	_ = v.BindEnv("search.sync_timeout_seconds", "SEARCH_SYNC_TIMEOUT")
	_ = v.BindEnv("search.job_ttl_hours", "SEARCH_JOB_TTL_HOURS")
	_ = v.BindEnv("scraper.user_agent", "SCRAPER_USER_AGENT")
	_ = v.BindEnv("scraper.timeout_seconds", "SCRAPER_TIMEOUT")
	_ = v.BindEnv("scraper.requests_per_second", "SCRAPER_RPS")
	_ = v.BindEnv("store.path", "STORE_PATH")
	_ = v.BindEnv("results.retention_days", "RESULTS_RETENTION_DAYS")
	_ = v.BindEnv("results.sweep_schedule", "RESULTS_SWEEP_SCHEDULE")
	_ = v.BindEnv("archive.endpoint", "ARCHIVE_ENDPOINT")
	_ = v.BindEnv("archive.region", "ARCHIVE_REGION")
	_ = v.BindEnv("archive.access_key_id", "ARCHIVE_ACCESS_KEY_ID")
	_ = v.BindEnv("archive.secret_access_key", "ARCHIVE_SECRET_ACCESS_KEY")
	_ = v.BindEnv("archive.bucket", "ARCHIVE_BUCKET")
	_ = v.BindEnv("worker.concurrency", "WORKER_CONCURRENCY")

	setDefaults(v)

	// Try to read config file (optional)
	_ = v.ReadInConfig()

	return fromViper(v), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "text")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("ratelimit.search_per_hour", 30)
	v.SetDefault("ratelimit.ask_per_min", 20)

	// OpenAI-compatible endpoint, Groq by default
	v.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.model", "llama-3.3-70b-versatile")

	v.SetDefault("search.provider", "duckduckgo")
	v.SetDefault("search.base_url", "https://html.duckduckgo.com")
	v.SetDefault("search.num_results", 3)
	v.SetDefault("search.excluded_hosts", []string{"google.", "youtube.", "facebook.", "linkedin.", "twitter."})
	v.SetDefault("search.sync_timeout_seconds", 300)
	v.SetDefault("search.job_ttl_hours", 24)

	v.SetDefault("scraper.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	v.SetDefault("scraper.timeout_seconds", 10)
	v.SetDefault("scraper.min_content_length", 100)
	v.SetDefault("scraper.requests_per_second", 2.0)
	v.SetDefault("scraper.concurrency", 3)

	v.SetDefault("store.path", "data/search.db")

	v.SetDefault("results.retention_days", 0)
	v.SetDefault("results.sweep_schedule", "@daily")

	v.SetDefault("archive.region", "auto")

	v.SetDefault("worker.concurrency", 10)
	v.SetDefault("worker.max_retry", 2)
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:      v.GetString("server.port"),
			Env:       v.GetString("server.env"),
			LogLevel:  v.GetString("server.log_level"),
			LogFormat: v.GetString("server.log_format"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
		},
		RateLimit: RateLimitConfig{
			SearchPerHour: v.GetInt("ratelimit.search_per_hour"),
			AskPerMin:     v.GetInt("ratelimit.ask_per_min"),
		},
		LLM: LLMConfig{
			APIKey:  v.GetString("llm.api_key"),
			BaseURL: v.GetString("llm.base_url"),
			Model:   v.GetString("llm.model"),
		},
		Search: SearchConfig{
			Provider:      v.GetString("search.provider"),
			BaseURL:       v.GetString("search.base_url"),
			NumResults:    v.GetInt("search.num_results"),
			ExcludedHosts: v.GetStringSlice("search.excluded_hosts"),
			SyncTimeout:   time.Duration(v.GetInt("search.sync_timeout_seconds")) * time.Second,
			JobTTL:        time.Duration(v.GetInt("search.job_ttl_hours")) * time.Hour,
		},
		Scraper: ScraperConfig{
			UserAgent:         v.GetString("scraper.user_agent"),
			Timeout:           time.Duration(v.GetInt("scraper.timeout_seconds")) * time.Second,
			MinContentLength:  v.GetInt("scraper.min_content_length"),
			RequestsPerSecond: v.GetFloat64("scraper.requests_per_second"),
			Concurrency:       v.GetInt("scraper.concurrency"),
		},
		Store: StoreConfig{
			Path: v.GetString("store.path"),
		},
		Results: ResultsConfig{
			RetentionDays: v.GetInt("results.retention_days"),
			SweepSchedule: v.GetString("results.sweep_schedule"),
		},
		Archive: ArchiveConfig{
			Endpoint:        v.GetString("archive.endpoint"),
			Region:          v.GetString("archive.region"),
			AccessKeyID:     v.GetString("archive.access_key_id"),
			SecretAccessKey: v.GetString("archive.secret_access_key"),
			Bucket:          v.GetString("archive.bucket"),
		},
		Worker: WorkerConfig{
			Concurrency: v.GetInt("worker.concurrency"),
			MaxRetry:    v.GetInt("worker.max_retry"),
		},
	}
}
