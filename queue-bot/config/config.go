package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const minSecretLength = 16

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
)

type Config struct {
	Bot        BotConfig        `yaml:"bot"`
	Reputation ReputationConfig `yaml:"reputation"`
	Codes      CodesConfig      `yaml:"codes"`
	Storage    StorageConfig    `yaml:"storage"`
	State      StateConfig      `yaml:"state"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Webhook    WebhookConfig    `yaml:"webhook"`
	Log        LogConfig        `yaml:"log"`
}

type BotConfig struct {
	Token     string  `yaml:"token"`
	Operators []int64 `yaml:"operators"`
	Debug     bool    `yaml:"debug"`
}

type ReputationConfig struct {
	Increase float64 `yaml:"increase"`
	Decrease float64 `yaml:"decrease"`
}

type CodesConfig struct {
	ExpirationSeconds int `yaml:"expiration_seconds"`
}

type StorageConfig struct {
	Backend     string `yaml:"backend"`
	DataDir     string `yaml:"data_dir"`
	DatabaseURL string `yaml:"database_url"`
	DBHost      string `yaml:"db_host"`
	DBPort      int    `yaml:"db_port"`
	DBUser      string `yaml:"db_user"`
	DBPassword  string `yaml:"db_password"`
	DBName      string `yaml:"db_name"`
	DBSSLMode   string `yaml:"db_sslmode"`
}

type StateConfig struct {
	Backend    string `yaml:"backend"`
	RedisURL   string `yaml:"redis_url"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

type RateLimitConfig struct {
	Limit         int `yaml:"limit"`
	WindowSeconds int `yaml:"window_seconds"`
}

type WebhookConfig struct {
	URL         string `yaml:"url"`
	ListenAddr  string `yaml:"listen_addr"`
	SecretToken string `yaml:"secret_token"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func defaults() *Config {
	return &Config{
		Reputation: ReputationConfig{Increase: 1, Decrease: 1},
		Codes:      CodesConfig{ExpirationSeconds: 120},
		Storage: StorageConfig{
			Backend:   BackendFile,
			DataDir:   ".",
			DBPort:    5432,
			DBSSLMode: "disable",
		},
		State: StateConfig{
			Backend:    BackendMemory,
			RedisURL:   "redis://localhost:6379",
			TTLSeconds: 3600,
		},
		RateLimit: RateLimitConfig{WindowSeconds: 10},
		Webhook:   WebhookConfig{ListenAddr: ":8080"},
		Log:       LogConfig{Level: "info"},
	}
}

// Load reads .env if present, then the YAML file named by CONFIG_FILE, then
// the environment. Environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := defaults()
	if path := getEnv("CONFIG_FILE", ""); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, newConfigError("CONFIG_FILE", err.Error())
		}
	}

	cfg.Bot.Token = getEnv("BOT_TOKEN", cfg.Bot.Token)
	cfg.Bot.Debug = getEnvAsBool("DEBUG", cfg.Bot.Debug)
	operators, err := getEnvAsIDs(cfg.Bot.Operators, "OPERATOR_IDS", "ADMIN_ID")
	if err != nil {
		return nil, err
	}
	cfg.Bot.Operators = operators

	cfg.Reputation.Increase = getEnvAsFloat("REPUTATION_INCREASE", cfg.Reputation.Increase)
	cfg.Reputation.Decrease = getEnvAsFloat("REPUTATION_DECREASE", cfg.Reputation.Decrease)
	cfg.Codes.ExpirationSeconds = getEnvAsInt("CODE_EXPIRATION_TIME", cfg.Codes.ExpirationSeconds)

	cfg.Storage.Backend = strings.ToLower(getEnv("STORAGE_BACKEND", cfg.Storage.Backend))
	cfg.Storage.DataDir = getEnv("DATA_DIR", cfg.Storage.DataDir)
	cfg.Storage.DatabaseURL = getEnv("DATABASE_URL", cfg.Storage.DatabaseURL)
	cfg.Storage.DBHost = getEnv("DB_HOST", cfg.Storage.DBHost)
	cfg.Storage.DBPort = getEnvAsInt("DB_PORT", cfg.Storage.DBPort)
	cfg.Storage.DBUser = getEnv("DB_USER", cfg.Storage.DBUser)
	cfg.Storage.DBPassword = getEnv("DB_PASSWORD", cfg.Storage.DBPassword)
	cfg.Storage.DBName = getEnv("DB_NAME", cfg.Storage.DBName)
	cfg.Storage.DBSSLMode = getEnv("DB_SSLMODE", cfg.Storage.DBSSLMode)

	cfg.State.Backend = strings.ToLower(getEnv("STATE_BACKEND", cfg.State.Backend))
	cfg.State.RedisURL = getEnv("REDIS_URL", cfg.State.RedisURL)
	cfg.State.TTLSeconds = getEnvAsInt("STATE_TTL", cfg.State.TTLSeconds)

	cfg.RateLimit.Limit = getEnvAsInt("RATE_LIMIT", cfg.RateLimit.Limit)
	cfg.RateLimit.WindowSeconds = getEnvAsInt("RATE_WINDOW", cfg.RateLimit.WindowSeconds)

	cfg.Webhook.URL = strings.TrimSuffix(getEnv("WEBHOOK_URL", cfg.Webhook.URL), "/")
	cfg.Webhook.ListenAddr = getEnv("LISTEN_ADDR", cfg.Webhook.ListenAddr)
	cfg.Webhook.SecretToken = getEnv("WEBHOOK_SECRET", cfg.Webhook.SecretToken)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateConfig(cfg *Config) error {
	switch cfg.Storage.Backend {
	case BackendFile:
		if cfg.Storage.DataDir == "" {
			return newConfigError("DATA_DIR", "не может быть пустым")
		}
	case BackendPostgres:
		if cfg.Storage.DSN() == "" {
			return newConfigError("DATABASE_URL", "нужен DATABASE_URL или DB_HOST")
		}
	default:
		return newConfigError("STORAGE_BACKEND", "ожидается file или postgres")
	}

	switch cfg.State.Backend {
	case BackendMemory, BackendRedis:
	default:
		return newConfigError("STATE_BACKEND", "ожидается memory или redis")
	}

	if cfg.Codes.ExpirationSeconds <= 0 {
		return newConfigError("CODE_EXPIRATION_TIME", "должно быть больше нуля")
	}
	if cfg.Reputation.Increase < 0 {
		return newConfigError("REPUTATION_INCREASE", "не может быть отрицательным")
	}
	if cfg.Reputation.Decrease < 0 {
		return newConfigError("REPUTATION_DECREASE", "не может быть отрицательным")
	}
	if cfg.Webhook.URL != "" {
		if cfg.Webhook.SecretToken == "" {
			return newConfigError("WEBHOOK_SECRET", "секретный токен обязателен для безопасности")
		}
		if len(cfg.Webhook.SecretToken) < minSecretLength {
			return newConfigError("WEBHOOK_SECRET", fmt.Sprintf("не короче %d символов", minSecretLength))
		}
		if !isURLSafe(cfg.Webhook.SecretToken) {
			return newConfigError("WEBHOOK_SECRET", "допустимы только A-Z, a-z, 0-9, _ и -")
		}
	}
	if cfg.RateLimit.Limit > 0 {
		if cfg.State.Backend != BackendRedis {
			return newConfigError("RATE_LIMIT", "работает только с STATE_BACKEND=redis")
		}
		if cfg.RateLimit.WindowSeconds <= 0 {
			return newConfigError("RATE_WINDOW", "должно быть больше нуля")
		}
	}
	return nil
}

func isURLSafe(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}

// RequireBot checks the settings the chat transport cannot start without.
func (c *Config) RequireBot() error {
	if c.Bot.Token == "" {
		return newConfigError("BOT_TOKEN", "не может быть пустым")
	}
	if len(c.Bot.Operators) == 0 {
		return newConfigError("OPERATOR_IDS", "нужен хотя бы один оператор")
	}
	return nil
}

func (c *Config) CodeTTL() time.Duration {
	return time.Duration(c.Codes.ExpirationSeconds) * time.Second
}

func (c *Config) StateTTL() time.Duration {
	return time.Duration(c.State.TTLSeconds) * time.Second
}

func (c *Config) RateWindow() time.Duration {
	return time.Duration(c.RateLimit.WindowSeconds) * time.Second
}

// DSN prefers DATABASE_URL and otherwise assembles one from the DB_* parts.
func (s StorageConfig) DSN() string {
	if s.DatabaseURL != "" {
		return s.DatabaseURL
	}
	if s.DBHost == "" {
		return ""
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		s.DBHost, s.DBPort, s.DBUser, s.DBPassword, s.DBName, s.DBSSLMode)
}

type ConfigError struct {
	Field  string
	Reason string
}

func (e ConfigError) Error() string {
	return "конфигурационная ошибка: поле " + e.Field + " - " + e.Reason
}

func newConfigError(field, reason string) ConfigError {
	return ConfigError{
		Field:  field,
		Reason: reason,
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
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
	valueStr := getEnv(key, "")
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
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsIDs merges comma separated ids from the given keys. Without any of
// them set the fallback is kept.
func getEnvAsIDs(fallback []int64, keys ...string) ([]int64, error) {
	var (
		ids  []int64
		seen = map[int64]bool{}
		set  bool
	)
	for _, key := range keys {
		raw := getEnv(key, "")
		if raw == "" {
			continue
		}
		set = true
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, newConfigError(key, fmt.Sprintf("неверный id %q", part))
			}
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	if !set {
		return fallback, nil
	}
	return ids, nil
}
