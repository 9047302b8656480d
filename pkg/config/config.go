package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Slots     SlotsConfig
	Schedule  ScheduleConfig
	Payments  PaymentsConfig
	Documents DocumentsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SlotsConfig tunes caching of generated slot listings.
type SlotsConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// ScheduleConfig controls the per-(doctor,date) availability edit lock.
type ScheduleConfig struct {
	LockTTL      time.Duration
	DefaultTZ    string
	SlotDuration time.Duration
}

// PaymentsConfig configures the external checkout provider.
type PaymentsConfig struct {
	Enabled         bool
	ProviderBaseURL string
	SecretKey       string
	AmountCents     int64
	Currency        string
	SuccessURL      string
	CancelURL       string
	RequestTimeout  time.Duration
}

// DocumentsConfig controls document and prescription file storage.
type DocumentsConfig struct {
	StorageDir       string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	MaxFileSizeBytes int64
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Slots = SlotsConfig{
		CacheEnabled: v.GetBool("SLOTS_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("SLOTS_CACHE_TTL"), time.Minute),
	}

	cfg.Schedule = ScheduleConfig{
		LockTTL:      parseDuration(v.GetString("SCHEDULE_LOCK_TTL"), 10*time.Second),
		DefaultTZ:    v.GetString("SCHEDULE_DEFAULT_TZ"),
		SlotDuration: parseDuration(v.GetString("SCHEDULE_SLOT_DURATION"), 30*time.Minute),
	}

	cfg.Payments = PaymentsConfig{
		Enabled:         v.GetBool("ENABLE_PAYMENTS"),
		ProviderBaseURL: v.GetString("PAYMENTS_PROVIDER_BASE_URL"),
		SecretKey:       v.GetString("PAYMENTS_SECRET_KEY"),
		AmountCents:     v.GetInt64("PAYMENTS_CONSULTATION_FEE_CENTS"),
		Currency:        v.GetString("PAYMENTS_CURRENCY"),
		SuccessURL:      v.GetString("PAYMENTS_SUCCESS_URL"),
		CancelURL:       v.GetString("PAYMENTS_CANCEL_URL"),
		RequestTimeout:  parseDuration(v.GetString("PAYMENTS_REQUEST_TIMEOUT"), 10*time.Second),
	}

	maxUpload := v.GetInt64("DOCUMENTS_MAX_FILE_SIZE")
	if maxUpload <= 0 {
		maxUpload = 10 * 1024 * 1024
	}
	cfg.Documents = DocumentsConfig{
		StorageDir:       v.GetString("DOCUMENTS_STORAGE_DIR"),
		SignedURLSecret:  v.GetString("DOCUMENTS_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("DOCUMENTS_SIGNED_URL_TTL"), 30*time.Minute),
		MaxFileSizeBytes: maxUpload,
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "medconsult")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SLOTS_CACHE_ENABLED", false)
	v.SetDefault("SLOTS_CACHE_TTL", "1m")

	v.SetDefault("SCHEDULE_LOCK_TTL", "10s")
	v.SetDefault("SCHEDULE_DEFAULT_TZ", "UTC")
	v.SetDefault("SCHEDULE_SLOT_DURATION", "30m")

	v.SetDefault("ENABLE_PAYMENTS", false)
	v.SetDefault("PAYMENTS_PROVIDER_BASE_URL", "https://api.stripe.com")
	v.SetDefault("PAYMENTS_SECRET_KEY", "")
	v.SetDefault("PAYMENTS_CONSULTATION_FEE_CENTS", 5000)
	v.SetDefault("PAYMENTS_CURRENCY", "usd")
	v.SetDefault("PAYMENTS_SUCCESS_URL", "http://localhost:3000/payments/success")
	v.SetDefault("PAYMENTS_CANCEL_URL", "http://localhost:3000/payments/cancel")
	v.SetDefault("PAYMENTS_REQUEST_TIMEOUT", "10s")

	v.SetDefault("DOCUMENTS_STORAGE_DIR", "./uploads")
	v.SetDefault("DOCUMENTS_SIGNED_URL_SECRET", "dev_documents_secret")
	v.SetDefault("DOCUMENTS_SIGNED_URL_TTL", "30m")
	v.SetDefault("DOCUMENTS_MAX_FILE_SIZE", 10*1024*1024)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
