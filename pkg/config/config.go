package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// External collaborators
	Narrative NarrativeConfig
	Universe  UniverseConfig

	// Strategy YAML (empty = built-in defaults)
	StrategyConfigPath string

	// Scheduled selection run (robfig/cron, with seconds)
	ScheduleCron string

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
	MetricsPort    string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	URL      string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// NarrativeConfig holds the AI narrative service settings
type NarrativeConfig struct {
	Enabled     bool
	APIKey      string
	Model       string
	MaxTokens   int
	Timeout     time.Duration // per call
	MaxRetries  int
	Concurrency int
	RPS         float64
}

// UniverseConfig selects where the index membership feed comes from
type UniverseConfig struct {
	Source    string // wikipedia | database
	UserAgent string
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	return load(true)
}

// LoadOffline is Load without the DATABASE_URL requirement (snapshot-file runs)
func LoadOffline() (*Config, error) {
	return load(false)
}

func load(requireDatabase bool) (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "trifund"),
			User:            getEnv("DB_USER", "trifund"),
			Password:        getEnv("DB_PASSWORD", ""),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		Narrative: NarrativeConfig{
			Enabled:     getEnvAsBool("NARRATIVE_ENABLED", true),
			APIKey:      getEnv("ANTHROPIC_API_KEY", ""),
			Model:       getEnv("NARRATIVE_MODEL", "claude-sonnet-4-5"),
			MaxTokens:   getEnvAsInt("NARRATIVE_MAX_TOKENS", 1024),
			Timeout:     getEnvAsDuration("NARRATIVE_TIMEOUT", "45s"),
			MaxRetries:  getEnvAsInt("NARRATIVE_MAX_RETRIES", 2),
			Concurrency: getEnvAsInt("NARRATIVE_CONCURRENCY", 4),
			RPS:         getEnvAsFloat("NARRATIVE_RPS", 2),
		},

		Universe: UniverseConfig{
			Source:    getEnv("UNIVERSE_SOURCE", "database"),
			UserAgent: getEnv("UNIVERSE_USER_AGENT", "trifund-universe/1.0"),
		},

		StrategyConfigPath: getEnv("STRATEGY_CONFIG", ""),
		ScheduleCron:       getEnv("SCHEDULE_CRON", "0 30 22 * * 1-5"),

		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
	}

	if err := cfg.validate(requireDatabase); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate(requireDatabase bool) error {
	if requireDatabase && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Universe.Source != "wikipedia" && c.Universe.Source != "database" {
		return fmt.Errorf("UNIVERSE_SOURCE must be one of: wikipedia, database")
	}

	// 키 없이 켜두면 매 실행마다 전부 실패하므로 조기에 막는다
	if c.Narrative.Enabled && c.Narrative.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required when NARRATIVE_ENABLED=true")
	}

	if c.Narrative.Concurrency < 1 {
		return fmt.Errorf("NARRATIVE_CONCURRENCY must be >= 1")
	}

	if c.Narrative.MaxRetries < 0 {
		return fmt.Errorf("NARRATIVE_MAX_RETRIES must be >= 0")
	}

	return nil
}

// IsProduction reports whether the process runs in production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
		"backend/.env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
