// Пакет config — загрузка и валидация конфигурации Report Module
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Report Module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймауты HTTP-сервера
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Хранилище изображений ---

	// Корневая директория хранения загруженных изображений
	AssetDataDir string
	// Максимальный размер одного загружаемого файла (байты)
	AssetMaxFileSize int64
	// Максимальный суммарный размер одного multipart-запроса (байты)
	UploadMaxRequestSize int64

	// --- Сессии и токены ---

	// Ключ шифрования session cookie (base64 или произвольная строка)
	SessionKey string
	// Secure flag для cookie (true для HTTPS)
	SessionSecure bool
	// Секрет подписи JWT access-токенов (HS256)
	JWTSecret string
	// Время жизни access-токена
	JWTTTL time.Duration

	// --- PDF ---

	// Путь к файлу логотипа для шапки PDF (опционально;
	// при ошибке загрузки PDF генерируется без логотипа)
	PDFLogoPath string

	// --- Кэш отчётов ---

	// Максимальное количество отчётов в LRU-кэше
	CacheSize int
	// TTL записи кэша
	CacheTTL time.Duration

	// --- Dephealth ---

	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Имя группы в метриках topologymetrics
	DephealthGroup string
	// Лейбл isentry=yes для всех зависимостей
	DephealthIsEntry bool
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// RM_PORT — порт HTTP-сервера (по умолчанию 8010)
	cfg.Port, err = getEnvInt("RM_PORT", 8010)
	if err != nil {
		return nil, fmt.Errorf("RM_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("RM_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// RM_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("RM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("RM_LOG_LEVEL: %w", err)
	}

	// RM_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("RM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("RM_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// Таймауты HTTP-сервера
	cfg.HTTPReadTimeout, err = getEnvDuration("RM_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RM_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("RM_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RM_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("RM_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RM_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// RM_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 15s)
	cfg.ShutdownTimeout, err = getEnvDuration("RM_SHUTDOWN_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RM_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	// RM_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("RM_DB_HOST")
	if err != nil {
		return nil, err
	}

	// RM_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("RM_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("RM_DB_PORT: %w", err)
	}

	// RM_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("RM_DB_NAME")
	if err != nil {
		return nil, err
	}

	// RM_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("RM_DB_USER")
	if err != nil {
		return nil, err
	}

	// RM_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("RM_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// RM_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("RM_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("RM_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Хранилище изображений ---

	// RM_ASSET_DATA_DIR — директория хранения изображений (по умолчанию /var/lib/report-module/assets)
	cfg.AssetDataDir = getEnvDefault("RM_ASSET_DATA_DIR", "/var/lib/report-module/assets")

	// RM_ASSET_MAX_FILE_SIZE — лимит размера файла (по умолчанию 20 MiB)
	maxSize, err := getEnvInt("RM_ASSET_MAX_FILE_SIZE", 20<<20)
	if err != nil {
		return nil, fmt.Errorf("RM_ASSET_MAX_FILE_SIZE: %w", err)
	}
	if maxSize <= 0 {
		return nil, fmt.Errorf("RM_ASSET_MAX_FILE_SIZE: значение должно быть положительным, получено %d", maxSize)
	}
	cfg.AssetMaxFileSize = int64(maxSize)

	// RM_UPLOAD_MAX_REQUEST_SIZE — суммарный лимит multipart-запроса (по умолчанию 100 MiB)
	requestSize, err := getEnvInt("RM_UPLOAD_MAX_REQUEST_SIZE", 100<<20)
	if err != nil {
		return nil, fmt.Errorf("RM_UPLOAD_MAX_REQUEST_SIZE: %w", err)
	}
	if int64(requestSize) < cfg.AssetMaxFileSize {
		return nil, fmt.Errorf("RM_UPLOAD_MAX_REQUEST_SIZE: значение %d меньше лимита одного файла %d", requestSize, cfg.AssetMaxFileSize)
	}
	cfg.UploadMaxRequestSize = int64(requestSize)

	// --- Сессии и токены ---

	// RM_SESSION_KEY — ключ шифрования cookie (пусто — случайный ключ,
	// непостоянный между рестартами)
	cfg.SessionKey = os.Getenv("RM_SESSION_KEY")

	// RM_SESSION_SECURE — Secure flag cookie (по умолчанию false)
	cfg.SessionSecure = getEnvDefault("RM_SESSION_SECURE", "false") == "true"

	// RM_JWT_SECRET — обязательный
	cfg.JWTSecret, err = getEnvRequired("RM_JWT_SECRET")
	if err != nil {
		return nil, err
	}

	// RM_JWT_TTL — время жизни access-токена (по умолчанию 24h)
	cfg.JWTTTL, err = getEnvDuration("RM_JWT_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("RM_JWT_TTL: %w", err)
	}

	// --- PDF ---

	// RM_PDF_LOGO_PATH — путь к логотипу (опционально)
	cfg.PDFLogoPath = os.Getenv("RM_PDF_LOGO_PATH")

	// --- Кэш отчётов ---

	// RM_CACHE_SIZE — размер LRU-кэша (по умолчанию 500)
	cfg.CacheSize, err = getEnvInt("RM_CACHE_SIZE", 500)
	if err != nil {
		return nil, fmt.Errorf("RM_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize < 1 {
		return nil, fmt.Errorf("RM_CACHE_SIZE: значение должно быть положительным, получено %d", cfg.CacheSize)
	}

	// RM_CACHE_TTL — TTL записи кэша (по умолчанию 5m)
	cfg.CacheTTL, err = getEnvDuration("RM_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("RM_CACHE_TTL: %w", err)
	}

	// --- Dephealth ---

	// RM_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("RM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// RM_DEPHEALTH_GROUP — имя группы (по умолчанию phvinspect)
	cfg.DephealthGroup = getEnvDefault("RM_DEPHEALTH_GROUP", "phvinspect")

	// RM_DEPHEALTH_ISENTRY — лейбл isentry (по умолчанию false)
	cfg.DephealthIsEntry = getEnvDefault("RM_DEPHEALTH_ISENTRY", "false") == "true"

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL подключения к PostgreSQL
// (для topologymetrics-лейблов).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%d/%s?sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
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

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
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

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
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
