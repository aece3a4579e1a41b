package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	DB        *gorm.DB
	AppConfig Config
	envLoaded bool
)

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

type LLMConfig struct {
	Provider   string        `json:"provider"` // openai, anthropic, ollama
	Model      string        `json:"model"`
	APIKey     string        `json:"-"`
	OllamaHost string        `json:"ollama_host"`
	Timeout    time.Duration `json:"timeout"`
}

type Config struct {
	Environment string `json:"environment"`
	ServerPort  string `json:"server_port"`
	LogLevel    string `json:"log_level"`
	SentryDSN   string `json:"-"`

	DBDriver       string `json:"db_driver"` // postgres, sqlite
	DBHost         string `json:"db_host"`
	DBPort         string `json:"db_port"`
	DBUser         string `json:"db_user"`
	DBPassword     string `json:"-"`
	DBName         string `json:"db_name"`
	DBSSLMode      string `json:"db_ssl_mode"`
	DBMaxIdleConns int    `json:"db_max_idle_conns"`
	DBMaxOpenConns int    `json:"db_max_open_conns"`
	SQLitePath     string `json:"sqlite_path"`

	JWTSecret         string   `json:"-"`
	JWTExpirationDays int      `json:"jwt_expiration_days"`
	CORSOrigins       []string `json:"cors_origins"`
	RateLimitStart    int      `json:"rate_limit_start"`

	Redis RedisConfig `json:"redis"`
	LLM   LLMConfig   `json:"llm"`

	ScrapeInterval     time.Duration `json:"scrape_interval"`
	SendInterval       time.Duration `json:"send_interval"`
	AnalyticsCacheTTL  time.Duration `json:"analytics_cache_ttl"`
	StaleSweepInterval time.Duration `json:"stale_sweep_interval"`
}

func init() {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()
	envLoaded = true
}

func LoadConfig() error {
	AppConfig = Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		ServerPort:  getEnv("SERVER_PORT", "8001"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		SentryDSN:   getEnv("SENTRY_DSN", ""),

		DBDriver:       getEnv("DB_DRIVER", "postgres"),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "mapslead"),
		DBSSLMode:      getEnv("DB_SSL_MODE", "disable"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
		SQLitePath:     getEnv("SQLITE_PATH", "mapslead.db"),

		JWTSecret:         getEnv("JWT_SECRET", "default_secret_key"),
		JWTExpirationDays: getEnvAsInt("JWT_EXPIRATION_DAYS", 30),
		CORSOrigins:       splitList(getEnv("CORS_ORIGINS", "*")),
		RateLimitStart:    getEnvAsInt("RATE_LIMIT_START", 10),

		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		LLM: LLMConfig{
			Provider:   getEnv("LLM_PROVIDER", "openai"),
			Model:      getEnv("LLM_MODEL", "gpt-4o"),
			APIKey:     getEnv("LLM_API_KEY", ""),
			OllamaHost: getEnv("OLLAMA_HOST", "http://localhost:11434"),
			Timeout:    getEnvAsDuration("AI_TIMEOUT", 30*time.Second),
		},

		ScrapeInterval:     getEnvAsDuration("SCRAPE_INTERVAL", 100*time.Millisecond),
		SendInterval:       getEnvAsDuration("SEND_INTERVAL", 500*time.Millisecond),
		AnalyticsCacheTTL:  getEnvAsDuration("ANALYTICS_CACHE_TTL", 60*time.Second),
		StaleSweepInterval: getEnvAsDuration("STALE_SWEEP_INTERVAL", time.Minute),
	}

	// Validate required configurations
	switch AppConfig.DBDriver {
	case "postgres":
		if AppConfig.DBPassword == "" {
			return fmt.Errorf("DB_PASSWORD is required for the postgres driver")
		}
	case "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", AppConfig.DBDriver)
	}
	if AppConfig.Environment == "production" {
		if AppConfig.JWTSecret == "" || AppConfig.JWTSecret == "default_secret_key" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
	}

	logConfig()
	return nil
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	if !envLoaded && fallback == "" {
		logrus.Warnf("Environment variable %s not found and no fallback provided", key)
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsBool(key string, fallback bool) bool {
	value, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(fallback)))
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func logConfig() {
	logrus.WithFields(logrus.Fields{
		"environment": AppConfig.Environment,
		"server_port": AppConfig.ServerPort,
		"db_driver":   AppConfig.DBDriver,
		"database":    fmt.Sprintf("%s@%s:%s/%s", AppConfig.DBUser, AppConfig.DBHost, AppConfig.DBPort, AppConfig.DBName),
		"redis":       AppConfig.Redis.Enabled,
		"llm":         AppConfig.LLM.Provider,
		"llm_enabled": AppConfig.LLM.APIKey != "" || AppConfig.LLM.Provider == "ollama",
	}).Info("Loaded configuration")
}
