package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/wonny/findata/internal/domain/stock"
)

// Config represents the application configuration
// SSOT: 모든 설정은 .env 파일 또는 환경 변수에서 로드됨
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Logging      LoggingConfig
	Ingest       IngestConfig
	AlphaVantage AlphaVantageConfig
}

type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	URL             string // SSOT: DATABASE_URL
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig configures the statistics cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type LoggingConfig struct {
	Level         string
	Format        string
	FileEnabled   bool
	FilePath      string
	RotationSize  int
	RetentionDays int
}

type IngestConfig struct {
	BatchSize  int
	DateFormat string
}

type AlphaVantageConfig struct {
	APIKey       string
	BaseURL      string
	Symbols      []string
	Days         int
	Timeout      time.Duration
	SyncInterval time.Duration // 0 = 주기 수집 안 함
}

// Load loads configuration from .env file
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env 파일이 없어도 계속 진행 (환경 변수에서 로드 시도)
		fmt.Fprintln(os.Stderr, "Warning: .env file not found, using environment variables")
	}
	return FromEnv()
}

// FromEnv builds the configuration from the process environment only
func FromEnv() (*Config, error) {
	var errs []string
	intVar := func(key string, fallback int) int {
		v, err := getEnvInt(key, fallback)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return v
	}
	durVar := func(key string, fallback time.Duration) time.Duration {
		v, err := getEnvDuration(key, fallback)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return v
	}

	config := &Config{
		Server: ServerConfig{
			Port:           getEnv("API_PORT", "8000"),
			ReadTimeout:    durVar("API_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:   durVar("API_WRITE_TIMEOUT", 30*time.Second),
			AllowedOrigins: splitList(getEnv("CORS_ORIGINS", "*")),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "financial_db"),
			User:            getEnv("DB_USER", "financial_user"),
			Password:        getEnv("DB_PASSWORD", "financial_pass"),
			URL:             os.Getenv("DATABASE_URL"),
			MaxConns:        int32(intVar("DB_MAX_CONNS", 10)),
			MinConns:        int32(intVar("DB_MIN_CONNS", 1)),
			MaxConnLifetime: durVar("DB_MAX_CONN_LIFETIME", time.Hour),
			MaxConnIdleTime: durVar("DB_MAX_CONN_IDLE_TIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       intVar("REDIS_DB", 0),
			TTL:      durVar("STATS_CACHE_TTL", 10*time.Minute),
		},
		Logging: LoggingConfig{
			Level:         getEnv("LOG_LEVEL", "info"),
			Format:        getEnv("LOG_FORMAT", "pretty"),
			FileEnabled:   getEnv("LOG_FILE_ENABLED", "false") == "true",
			FilePath:      getEnv("LOG_FILE_PATH", "logs"),
			RotationSize:  intVar("LOG_ROTATION_SIZE_MB", 100),
			RetentionDays: intVar("LOG_RETENTION_DAYS", 7),
		},
		Ingest: IngestConfig{
			BatchSize:  intVar("INGEST_BATCH_SIZE", 1000),
			DateFormat: getEnv("DATE_FORMAT", "2006-01-02"),
		},
		AlphaVantage: AlphaVantageConfig{
			APIKey:       getEnv("ALPHAVANTAGE_API_KEY", ""),
			BaseURL:      getEnv("ALPHAVANTAGE_BASE_URL", "https://www.alphavantage.co/query"),
			Symbols:      splitList(getEnv("ALPHAVANTAGE_SYMBOLS", "IBM,AAPL")),
			Days:         intVar("ALPHAVANTAGE_DAYS", 14),
			Timeout:      durVar("ALPHAVANTAGE_TIMEOUT", 30*time.Second),
			SyncInterval: durVar("ALPHAVANTAGE_SYNC_INTERVAL", 0),
		},
	}

	if n := config.Ingest.BatchSize; n < 1 || n > stock.MaxBatchSize {
		errs = append(errs, fmt.Sprintf("INGEST_BATCH_SIZE: %d is outside 1..%d", n, stock.MaxBatchSize))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}

	if config.Database.URL == "" {
		config.Database.URL = config.Database.DSN()
	}

	return config, nil
}

// DSN builds a PostgreSQL connection URL from the individual fields
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + d.Port,
		Path:     "/" + d.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// getEnv gets environment variable with fallback
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback, fmt.Errorf("%s: %q is not an integer", key, value)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback, fmt.Errorf("%s: %q is not a duration", key, value)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
