// Пакет config — загрузка и валидация конфигурации specsCloud
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

// Config содержит все параметры конфигурации specsCloud.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймаут чтения HTTP-запроса
	HTTPReadTimeout time.Duration
	// Таймаут записи HTTP-ответа
	HTTPWriteTimeout time.Duration
	// Таймаут keep-alive соединений
	HTTPIdleTimeout time.Duration
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

	// --- Blob store ---

	// Корневая директория хранения файлов
	DataDir string
	// Максимальный размер одного файла в байтах
	MaxFileSize int64

	// --- Аутентификация ---

	// Секрет подписи JWT (HS256)
	JWTSecret string
	// Время жизни выданного токена
	JWTTTL time.Duration
	// Email учётной записи администратора, создаваемой при старте
	// (пусто — bootstrap отключён)
	AdminEmail string
	// Пароль учётной записи администратора
	AdminPassword string

	// --- Кэш папок ---

	// Максимальное количество записей в LRU-кэше вида папок
	FolderCacheSize int
	// TTL записи кэша вида папок
	FolderCacheTTL time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// SC_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("SC_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("SC_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("SC_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// SC_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("SC_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("SC_LOG_LEVEL: %w", err)
	}

	// SC_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("SC_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("SC_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// SC_HTTP_READ_TIMEOUT — таймаут чтения запроса (по умолчанию 5m,
	// ограничивает длительность upload'а)
	cfg.HTTPReadTimeout, err = getEnvDuration("SC_HTTP_READ_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("SC_HTTP_READ_TIMEOUT: %w", err)
	}

	// SC_HTTP_WRITE_TIMEOUT — таймаут записи ответа (по умолчанию 5m,
	// ограничивает длительность download'а)
	cfg.HTTPWriteTimeout, err = getEnvDuration("SC_HTTP_WRITE_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("SC_HTTP_WRITE_TIMEOUT: %w", err)
	}

	// SC_HTTP_IDLE_TIMEOUT — таймаут keep-alive (по умолчанию 120s)
	cfg.HTTPIdleTimeout, err = getEnvDuration("SC_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SC_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// SC_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("SC_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SC_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	// SC_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("SC_DB_HOST")
	if err != nil {
		return nil, err
	}

	// SC_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("SC_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("SC_DB_PORT: %w", err)
	}

	// SC_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("SC_DB_NAME")
	if err != nil {
		return nil, err
	}

	// SC_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("SC_DB_USER")
	if err != nil {
		return nil, err
	}

	// SC_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("SC_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// SC_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("SC_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("SC_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Blob store ---

	// SC_DATA_DIR — директория хранения файлов (по умолчанию ./data)
	cfg.DataDir = getEnvDefault("SC_DATA_DIR", "./data")

	// SC_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 100 MiB)
	maxSize, err := getEnvInt("SC_MAX_FILE_SIZE", 100<<20)
	if err != nil {
		return nil, fmt.Errorf("SC_MAX_FILE_SIZE: %w", err)
	}
	if maxSize < 1 {
		return nil, fmt.Errorf("SC_MAX_FILE_SIZE: значение должно быть положительным")
	}
	cfg.MaxFileSize = int64(maxSize)

	// --- Аутентификация ---

	// SC_JWT_SECRET — обязательный
	cfg.JWTSecret, err = getEnvRequired("SC_JWT_SECRET")
	if err != nil {
		return nil, err
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("SC_JWT_SECRET: длина должна быть не менее 32 символов")
	}

	// SC_JWT_TTL — время жизни токена (по умолчанию 24h)
	cfg.JWTTTL, err = getEnvDuration("SC_JWT_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("SC_JWT_TTL: %w", err)
	}

	// SC_ADMIN_EMAIL / SC_ADMIN_PASSWORD — bootstrap администратора
	// при старте (опционально, но только парой)
	cfg.AdminEmail = strings.ToLower(strings.TrimSpace(os.Getenv("SC_ADMIN_EMAIL")))
	cfg.AdminPassword = os.Getenv("SC_ADMIN_PASSWORD")
	if (cfg.AdminEmail == "") != (cfg.AdminPassword == "") {
		return nil, fmt.Errorf("SC_ADMIN_EMAIL и SC_ADMIN_PASSWORD задаются только вместе")
	}
	if cfg.AdminPassword != "" && len(cfg.AdminPassword) < 8 {
		return nil, fmt.Errorf("SC_ADMIN_PASSWORD: длина должна быть не менее 8 символов")
	}

	// --- Кэш папок ---

	// SC_FOLDER_CACHE_SIZE — размер LRU-кэша (по умолчанию 256)
	cfg.FolderCacheSize, err = getEnvInt("SC_FOLDER_CACHE_SIZE", 256)
	if err != nil {
		return nil, fmt.Errorf("SC_FOLDER_CACHE_SIZE: %w", err)
	}
	if cfg.FolderCacheSize < 1 {
		return nil, fmt.Errorf("SC_FOLDER_CACHE_SIZE: значение должно быть положительным")
	}

	// SC_FOLDER_CACHE_TTL — TTL записей кэша (по умолчанию 30s)
	cfg.FolderCacheTTL, err = getEnvDuration("SC_FOLDER_CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SC_FOLDER_CACHE_TTL: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
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
