// Пакет config — загрузка и валидация конфигурации Portfolio Tracker
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации сервиса.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string
	// Путь к CA-сертификату PostgreSQL (sslrootcert), опционально
	DBSSLRootCert string

	// --- Access tokens ---

	// Секрет HMAC для подписи access token
	JWTSecret string
	// Алгоритм подписи (HS256, HS384, HS512)
	JWTAlgorithm string
	// Время жизни access token
	AccessTokenTTL time.Duration

	// --- Отчёты ---

	// Корневая директория файлов отчётов
	ReportDir string
	// Время жизни сгенерированного отчёта
	ReportTTL time.Duration
	// Период цикла очистки просроченных отчётов
	SweepInterval time.Duration

	// --- Кэш инструментов ---

	// Максимальное количество ISIN в LRU-кэше
	InstrumentCacheSize int
	// TTL записи кэша инструментов
	InstrumentCacheTTL time.Duration

	// --- topologymetrics ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// PT_PORT — порт HTTP-сервера (по умолчанию 8000)
	cfg.Port, err = getEnvInt("PT_PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("PT_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("PT_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("PT_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("PT_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("PT_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("PT_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	cfg.DBHost, err = getEnvRequired("PT_DB_HOST")
	if err != nil {
		return nil, err
	}

	cfg.DBPort, err = getEnvInt("PT_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("PT_DB_PORT: %w", err)
	}

	cfg.DBName, err = getEnvRequired("PT_DB_NAME")
	if err != nil {
		return nil, err
	}

	cfg.DBUser, err = getEnvRequired("PT_DB_USER")
	if err != nil {
		return nil, err
	}

	cfg.DBPassword, err = getEnvRequired("PT_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// PT_DB_SSL_MODE — по умолчанию require (managed PostgreSQL)
	cfg.DBSSLMode = getEnvDefault("PT_DB_SSL_MODE", "require")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("PT_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	cfg.DBSSLRootCert = getEnvDefault("PT_DB_SSL_ROOT_CERT", "")
	if cfg.DBSSLRootCert != "" {
		if _, statErr := os.Stat(cfg.DBSSLRootCert); statErr != nil {
			return nil, fmt.Errorf("PT_DB_SSL_ROOT_CERT: файл недоступен: %w", statErr)
		}
	}

	// --- Access tokens ---

	cfg.JWTSecret, err = getEnvRequired("PT_JWT_SECRET")
	if err != nil {
		return nil, err
	}

	cfg.JWTAlgorithm = strings.ToUpper(getEnvDefault("PT_JWT_ALGORITHM", "HS256"))
	switch cfg.JWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		return nil, fmt.Errorf("PT_JWT_ALGORITHM: недопустимое значение %q, допустимые: HS256, HS384, HS512", cfg.JWTAlgorithm)
	}

	cfg.AccessTokenTTL, err = getEnvDuration("PT_ACCESS_TOKEN_TTL", 30*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("PT_ACCESS_TOKEN_TTL: %w", err)
	}
	if cfg.AccessTokenTTL <= 0 {
		return nil, fmt.Errorf("PT_ACCESS_TOKEN_TTL: должен быть положительным")
	}

	// --- Отчёты ---

	cfg.ReportDir = getEnvDefault("PT_REPORT_DIR", "reports")

	cfg.ReportTTL, err = getEnvDuration("PT_REPORT_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("PT_REPORT_TTL: %w", err)
	}
	if cfg.ReportTTL <= 0 {
		return nil, fmt.Errorf("PT_REPORT_TTL: должен быть положительным")
	}

	cfg.SweepInterval, err = getEnvDuration("PT_SWEEP_INTERVAL", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PT_SWEEP_INTERVAL: %w", err)
	}
	if cfg.SweepInterval < time.Second {
		return nil, fmt.Errorf("PT_SWEEP_INTERVAL: значение %s меньше минимального 1s", cfg.SweepInterval)
	}

	// --- Кэш инструментов ---

	cfg.InstrumentCacheSize, err = getEnvInt("PT_INSTRUMENT_CACHE_SIZE", 10000)
	if err != nil {
		return nil, fmt.Errorf("PT_INSTRUMENT_CACHE_SIZE: %w", err)
	}
	if cfg.InstrumentCacheSize < 1 {
		return nil, fmt.Errorf("PT_INSTRUMENT_CACHE_SIZE: значение %d меньше 1", cfg.InstrumentCacheSize)
	}

	cfg.InstrumentCacheTTL, err = getEnvDuration("PT_INSTRUMENT_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("PT_INSTRUMENT_CACHE_TTL: %w", err)
	}

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("PT_DEPHEALTH_GROUP", "portfolio")

	cfg.DephealthCheckInterval, err = getEnvDuration("PT_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PT_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("PT_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PT_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL для pgxpool.
func (c *Config) DatabaseDSN() string {
	dsn := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
	if c.DBSSLRootCert != "" {
		dsn += " sslrootcert=" + c.DBSSLRootCert
	}
	return dsn
}

// DatabaseURL возвращает URL подключения к PostgreSQL без пароля.
// Используется для лейблов topologymetrics.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s@%s:%d/%s", url.User(c.DBUser).String(), c.DBHost, c.DBPort, c.DBName)
}

// MigrationURL возвращает URL для golang-migrate (драйвер pgx5).
func (c *Config) MigrationURL() string {
	u := url.URL{
		Scheme: "pgx5",
		User:   url.UserPassword(c.DBUser, c.DBPassword),
		Host:   fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:   "/" + c.DBName,
	}
	q := url.Values{}
	q.Set("sslmode", c.DBSSLMode)
	if c.DBSSLRootCert != "" {
		q.Set("sslrootcert", c.DBSSLRootCert)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
