package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database   DatabaseConfig
	JWT        JWTConfig
	App        AppConfig
	Attendance AttendanceConfig
	Storage    StorageConfig
	FaceAPI    FaceAPIConfig
	HikCloud   HikCloudConfig
	RateLimit  RateLimitConfig
	Cron       CronConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string
}

// AppConfig holds application configuration
type AppConfig struct {
	Port           int
	Env            string
	LogLevel       string
	Version        string
	AllowedOrigins []string
}

// AttendanceConfig holds tenant-wide attendance policy.
type AttendanceConfig struct {
	// WorkingDaysFallback applies to shifts saved without working days.
	// Empty means no fallback: such days aggregate as Unresolved.
	WorkingDaysFallback  string
	DeviceGeofenceExempt bool
	ProcessWorkers       int
	ProcessMaxRangeDays  int
	EvidenceListLimit    int
	IngestTimeout        time.Duration
	StaleOpenShiftAfter  time.Duration
}

type StorageConfig struct {
	BasePath string
}

type FaceAPIConfig struct {
	URL       string
	Threshold float64
	Timeout   time.Duration
}

type HikCloudConfig struct {
	BaseURL      string
	AppKey       string
	SecretKey    string
	PageSize     int
	SyncInterval time.Duration
	Lookback     time.Duration
	RequestsPerS float64
}

// Enabled reports whether credentials are configured.
func (h HikCloudConfig) Enabled() bool {
	return h.AppKey != "" && h.SecretKey != ""
}

type RateLimitConfig struct {
	DeviceIngestPerMinute int
}

type CronConfig struct {
	ProcessHour int
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file loaded, using process environment", "error", err)
	}

	config := &Config{}
	var errs []error

	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432, &errs),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "attendance"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		MaxConns: int32(getEnvInt("DB_MAX_CONNS", 25, &errs)),
		MinConns: int32(getEnvInt("DB_MIN_CONNS", 5, &errs)),
	}

	config.App = AppConfig{
		Port:           getEnvInt("APP_PORT", 8080, &errs),
		Env:            getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Version:        getEnv("APP_VERSION", "v1.0.0"),
		AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
	}

	config.JWT = JWTConfig{
		Secret: getEnv("JWT_SECRET_KEY", ""),
	}

	config.Attendance = AttendanceConfig{
		WorkingDaysFallback:  getEnv("WORKING_DAYS_FALLBACK", ""),
		DeviceGeofenceExempt: getEnvBool("DEVICE_GEOFENCE_EXEMPT", true, &errs),
		ProcessWorkers:       getEnvInt("PROCESS_WORKERS", 8, &errs),
		ProcessMaxRangeDays:  getEnvInt("PROCESS_MAX_RANGE_DAYS", 62, &errs),
		EvidenceListLimit:    getEnvInt("EVIDENCE_LIST_LIMIT", 20, &errs),
		IngestTimeout:        getEnvDuration("INGEST_TIMEOUT", 10*time.Second, &errs),
		StaleOpenShiftAfter:  time.Duration(getEnvInt("STALE_OPEN_SHIFT_HOURS", 20, &errs)) * time.Hour,
	}

	config.Storage = StorageConfig{
		BasePath: getEnv("STORAGE_BASE_PATH", "./uploads"),
	}

	config.FaceAPI = FaceAPIConfig{
		URL:       strings.TrimRight(getEnv("FACE_API_URL", ""), "/"),
		Threshold: getEnvFloat("FACE_MATCH_THRESHOLD", 0.55, &errs),
		Timeout:   getEnvDuration("FACE_API_TIMEOUT", 12*time.Second, &errs),
	}

	config.HikCloud = HikCloudConfig{
		BaseURL:      strings.TrimRight(getEnv("HIK_BASE_URL", "https://isgp.hikcentralconnect.com"), "/"),
		AppKey:       getEnv("HIK_APP_KEY", ""),
		SecretKey:    getEnv("HIK_SECRET_KEY", ""),
		PageSize:     getEnvInt("HIK_PAGE_SIZE", 200, &errs),
		SyncInterval: getEnvDuration("HIK_SYNC_INTERVAL", 5*time.Minute, &errs),
		Lookback:     getEnvDuration("HIK_LOOKBACK", 24*time.Hour, &errs),
		RequestsPerS: getEnvFloat("HIK_REQUESTS_PER_SECOND", 2, &errs),
	}

	config.RateLimit = RateLimitConfig{
		DeviceIngestPerMinute: getEnvInt("DEVICE_INGEST_PER_MINUTE", 120, &errs),
	}

	config.Cron = CronConfig{
		ProcessHour: getEnvInt("CRON_PROCESS_HOUR", 1, &errs),
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.Attendance.ProcessWorkers < 1 {
		return fmt.Errorf("PROCESS_WORKERS must be at least 1")
	}
	if c.Attendance.ProcessMaxRangeDays < 1 {
		return fmt.Errorf("PROCESS_MAX_RANGE_DAYS must be at least 1")
	}
	if c.Cron.ProcessHour < 0 || c.Cron.ProcessHour > 23 {
		return fmt.Errorf("CRON_PROCESS_HOUR must be between 0 and 23")
	}
	if c.HikCloud.PageSize < 1 || c.HikCloud.PageSize > 200 {
		return fmt.Errorf("HIK_PAGE_SIZE must be between 1 and 200")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}

func getEnvInt(key string, fallback int, errs *[]error) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64, errs *[]error) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool, errs *[]error) bool {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return d
}
