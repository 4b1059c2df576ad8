package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	Google    GoogleConfig
	Search    SearchConfig
	Worker    WorkerConfig
	Retry     RetryConfig
	RateLimit RateLimitConfig
	Events    EventsConfig
}

type ServerConfig struct {
	Port     string `validate:"required"`
	Env      string `validate:"oneof=development production test"`
	LogLevel string `validate:"oneof=debug info warn error"`
}

type RedisConfig struct {
	Addr     string `validate:"required"`
	Password string
	DB       int `validate:"gte=0"`
}

// DatabaseConfig points at the Postgres instance holding business records.
// An empty URL selects the in-memory store.
type DatabaseConfig struct {
	URL      string
	MaxConns int32 `validate:"gte=1"`
}

type GoogleConfig struct {
	APIKey    string
	BaseURL   string        `validate:"required,url"`
	MaxRadius int           `validate:"gte=1,lte=50000"`
	Timeout   time.Duration `validate:"gt=0"`
}

type SearchConfig struct {
	Separator           string        `validate:"required"`
	GridStep            float64       `validate:"gt=0"`
	MetersPerDegree     float64       `validate:"gt=0"`
	CellDelay           time.Duration `validate:"gte=0"`
	PageDelay           time.Duration `validate:"gte=0"`
	MaxPages            int           `validate:"gte=1"`
	DedupDistanceMeters float64       `validate:"gt=0"`
	NameSimilarity      float64       `validate:"gt=0,lte=1"`
	EnrichDetails       bool
}

type WorkerConfig struct {
	Driver      string        `validate:"oneof=asynq local"`
	Concurrency int           `validate:"gte=1"`
	Queue       string        `validate:"required"`
	Retention   time.Duration `validate:"gte=0"`
}

type RetryConfig struct {
	MaxAttempts int           `validate:"gte=1"`
	BaseDelay   time.Duration `validate:"gte=0"`
	Multiplier  float64       `validate:"gte=1"`
}

type RateLimitConfig struct {
	SearchPerHour int `validate:"gte=0"`
}

type EventsConfig struct {
	Channel string `validate:"required"`
}

// Load reads configuration from defaults, an optional config.yaml and the environment.
func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("DATABASE_URL")
	readSecret("GOOGLE_API_KEY")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables: search.page_delay -> SEARCH_PAGE_DELAY
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Try to read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:     v.GetString("server.port"),
			Env:      v.GetString("server.env"),
			LogLevel: v.GetString("server.log_level"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Database: DatabaseConfig{
			URL:      v.GetString("database.url"),
			MaxConns: v.GetInt32("database.max_conns"),
		},
		Google: GoogleConfig{
			APIKey:    v.GetString("google.api_key"),
			BaseURL:   v.GetString("google.base_url"),
			MaxRadius: v.GetInt("google.max_radius"),
			Timeout:   v.GetDuration("google.timeout"),
		},
		Search: SearchConfig{
			Separator:           v.GetString("search.separator"),
			GridStep:            v.GetFloat64("search.grid_step"),
			MetersPerDegree:     v.GetFloat64("search.meters_per_degree"),
			CellDelay:           v.GetDuration("search.cell_delay"),
			PageDelay:           v.GetDuration("search.page_delay"),
			MaxPages:            v.GetInt("search.max_pages"),
			DedupDistanceMeters: v.GetFloat64("search.dedup_distance_meters"),
			NameSimilarity:      v.GetFloat64("search.name_similarity"),
			EnrichDetails:       v.GetBool("search.enrich_details"),
		},
		Worker: WorkerConfig{
			Driver:      v.GetString("worker.driver"),
			Concurrency: v.GetInt("worker.concurrency"),
			Queue:       v.GetString("worker.queue"),
			Retention:   v.GetDuration("worker.retention"),
		},
		Retry: RetryConfig{
			MaxAttempts: v.GetInt("retry.max_attempts"),
			BaseDelay:   v.GetDuration("retry.base_delay"),
			Multiplier:  v.GetFloat64("retry.multiplier"),
		},
		RateLimit: RateLimitConfig{
			SearchPerHour: v.GetInt("ratelimit.search_per_hour"),
		},
		Events: EventsConfig{
			Channel: v.GetString("events.channel"),
		},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("google.api_key", "")
	v.SetDefault("google.base_url", "https://maps.googleapis.com/maps/api")
	v.SetDefault("google.max_radius", 5000)
	v.SetDefault("google.timeout", 30*time.Second)
	v.SetDefault("search.separator", "in")
	v.SetDefault("search.grid_step", 0.01)
	v.SetDefault("search.meters_per_degree", 111000.0)
	v.SetDefault("search.cell_delay", 100*time.Millisecond)
	v.SetDefault("search.page_delay", 2*time.Second)
	v.SetDefault("search.max_pages", 10)
	v.SetDefault("search.dedup_distance_meters", 50.0)
	v.SetDefault("search.name_similarity", 0.8)
	v.SetDefault("search.enrich_details", false)
	v.SetDefault("worker.driver", "asynq")
	v.SetDefault("worker.concurrency", 3)
	v.SetDefault("worker.queue", "search")
	v.SetDefault("worker.retention", 24*time.Hour)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay", 2*time.Second)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("ratelimit.search_per_hour", 30)
	v.SetDefault("events.channel", "search:lifecycle")
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}
