// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Server  ServerConfig
	Auth    AuthConfig
	Data    DataConfig
	Blob    BlobConfig
	Enhance EnhanceConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Name         string
	Port         string        // Server port (default: 8000)
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
	CORSOrigins  []string      // Allowed origins for the web client
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	// PASETO v4 symmetric key for access tokens (32 bytes).
	// Set by auth.LoadOrGenerateKey in main.
	AccessTokenKey      []byte
	AccessTokenDuration time.Duration // e.g., 24h
}

// DataConfig holds durable storage configuration.
type DataConfig struct {
	// BasePath is the root directory for server state: the Badger database
	// lives in {base}/db, the auth key in {base}/auth.key.
	BasePath string
}

// BlobConfig holds attachment blob storage configuration.
type BlobConfig struct {
	// Path is the directory attachments are written to (default: {data}/attachments).
	Path string
	// BaseURL is the public URL prefix attachments are served from.
	BaseURL string
	// MaxFileSize is the per-file upload limit in bytes (default: 10 MiB).
	MaxFileSize int64
	// MaxFilesPerRequest caps how many files one upload may carry (default: 5).
	MaxFilesPerRequest int
}

// EnhanceConfig holds the external AI rewriting collaborator configuration.
type EnhanceConfig struct {
	Endpoint string        // Collaborator base URL
	APIKey   string        // Bearer key for the collaborator
	Model    string        // Model identifier sent with each request
	Timeout  time.Duration // Per-call timeout (default: 30s)
	RPS      float64       // Outbound requests per second (default: 1)
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := flag.String("data-path", "", "Base path for server state")
	serverName := flag.String("server-name", "", "Name for the server")
	serverPort := flag.String("port", "", "Server port (default: 8000)")
	readTimeout := flag.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := flag.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := flag.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	corsOrigins := flag.String("cors-origins", "", "Comma-separated allowed CORS origins")

	accessTokenDuration := flag.String("access-token-duration", "", "Access token lifetime (e.g., 24h)")

	blobPath := flag.String("blob-path", "", "Directory for attachment storage")
	blobBaseURL := flag.String("blob-base-url", "", "Public URL prefix for attachments")

	enhanceEndpoint := flag.String("enhance-endpoint", "", "AI enhancement service URL")
	enhanceModel := flag.String("enhance-model", "", "AI enhancement model identifier")
	enhanceTimeout := flag.String("enhance-timeout", "", "AI enhancement call timeout (default: 30s)")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Name: getConfigValue(*serverName, "SERVER_NAME", "Notedly Server"),
			Port: getConfigValue(*serverPort, "SERVER_PORT", "8000"),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Blob: BlobConfig{
			Path:               getConfigValue(*blobPath, "BLOB_PATH", ""),
			BaseURL:            getConfigValue(*blobBaseURL, "BLOB_BASE_URL", "/attachments"),
			MaxFileSize:        int64(getIntConfigValue("", "BLOB_MAX_FILE_SIZE", 10<<20)),
			MaxFilesPerRequest: getIntConfigValue("", "BLOB_MAX_FILES", 5),
		},
		Enhance: EnhanceConfig{
			Endpoint: getConfigValue(*enhanceEndpoint, "ENHANCE_ENDPOINT", ""),
			APIKey:   getConfigValue("", "ENHANCE_API_KEY", ""),
			Model:    getConfigValue(*enhanceModel, "ENHANCE_MODEL", "gemini-2.0-flash"),
			RPS:      1,
		},
	}

	// CORS origins are comma-separated.
	if origins := getConfigValue(*corsOrigins, "CORS_ORIGINS", "http://localhost:5173"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.Server.CORSOrigins = append(cfg.Server.CORSOrigins, o)
			}
		}
	}

	// Parse durations.
	var err error
	if cfg.Auth.AccessTokenDuration, err = parseDurationValue(*accessTokenDuration, "ACCESS_TOKEN_DURATION", "24h"); err != nil {
		return nil, err
	}
	if cfg.Server.ReadTimeout, err = parseDurationValue(*readTimeout, "SERVER_READ_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.Server.WriteTimeout, err = parseDurationValue(*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.Server.IdleTimeout, err = parseDurationValue(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"); err != nil {
		return nil, err
	}
	if cfg.Enhance.Timeout, err = parseDurationValue(*enhanceTimeout, "ENHANCE_TIMEOUT", "30s"); err != nil {
		return nil, err
	}

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}
	if err := cfg.expandBlobPath(); err != nil {
		return nil, fmt.Errorf("invalid blob path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.BasePath == "" {
		return errors.New("data base path cannot be empty after expansion")
	}

	if c.Blob.MaxFileSize <= 0 {
		return errors.New("blob max file size must be positive")
	}
	if c.Blob.MaxFilesPerRequest <= 0 {
		return errors.New("blob max files per request must be positive")
	}

	// Enhance endpoint may be empty - the /enhance operation then reports the
	// collaborator as unavailable instead of failing startup.

	return nil
}

// DBPath returns the Badger database directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.Data.BasePath, "db")
}

// expandDataPath expands ~ and makes the path absolute.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "Notedly", "data")

	expanded, err := expandPath(c.Data.BasePath, defaultPath)
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
}

// expandBlobPath expands ~ and makes the path absolute.
// Defaults to {data}/attachments if not specified.
func (c *Config) expandBlobPath() error {
	defaultPath := filepath.Join(c.Data.BasePath, "attachments")

	expanded, err := expandPath(c.Blob.Path, defaultPath)
	if err != nil {
		return err
	}
	c.Blob.Path = expanded
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// parseDurationValue resolves flag > env > default and parses the duration.
func parseDurationValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	raw := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, raw, err)
	}
	return d, nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
// Values already present in the environment are not overwritten.
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- path comes from the -env-file flag
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}

	return scanner.Err()
}
