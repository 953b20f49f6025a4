// Package config provides application configuration management with support
// for environment variables, command-line flags, and .env files.
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
	Data    DataConfig
	Server  ServerConfig
	Session SessionConfig
	Reader  ReaderConfig
	OCR     OCRConfig
	TTS     TTSConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DataConfig holds on-disk data locations. Artifacts, the summary database,
// and the search index all live under BasePath.
type DataConfig struct {
	BasePath string
}

// ArtifactsPath returns the artifact tree root.
func (d DataConfig) ArtifactsPath() string {
	return filepath.Join(d.BasePath, "artifacts")
}

// DatabasePath returns the embedded database directory.
func (d DataConfig) DatabasePath() string {
	return filepath.Join(d.BasePath, "db")
}

// SearchPath returns the search index directory.
func (d DataConfig) SearchPath() string {
	return filepath.Join(d.BasePath, "search")
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Name           string
	Port           string        // Server port (default: 8080)
	ReadTimeout    time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout   time.Duration // HTTP write timeout (default: 60s, audio downloads)
	IdleTimeout    time.Duration // HTTP idle timeout (default: 60s)
	AdvertiseMDNS  bool          // Advertise via mDNS/Zeroconf (default: true)
	WatchArtifacts bool          // Watch the artifact tree for out-of-band changes (default: true)
}

// SessionConfig holds session lifecycle configuration.
type SessionConfig struct {
	TTL        time.Duration // Idle timeout before eviction (default: 30m)
	GCInterval time.Duration // Background sweep interval (default: 5m)
}

// ReaderConfig holds reader service configuration.
type ReaderConfig struct {
	BaseURL string
}

// OCRConfig holds OCR provider configuration.
type OCRConfig struct {
	APIKey   string
	Language string // OCR language code (default: eng)
}

// TTSConfig holds speech synthesis configuration.
type TTSConfig struct {
	DefaultProvider          string // default: cartesia
	BenchmarkIntervalSeconds float64
	CartesiaAPIKey           string
	CartesiaVoice            string
	ElevenLabsAPIKey         string
	ElevenLabsVoice          string
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := flag.String("data-path", "", "Base path for artifacts, database, and search index")
	serverName := flag.String("server-name", "", "Name for the server")

	serverPort := flag.String("port", "", "Server port (default: 8080)")
	readTimeout := flag.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := flag.String("write-timeout", "", "HTTP write timeout (default: 60s)")
	idleTimeout := flag.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	advertiseMDNS := flag.String("advertise-mdns", "", "Advertise via mDNS/Zeroconf (default: true)")
	watchArtifacts := flag.String("watch-artifacts", "", "Watch the artifact tree for out-of-band changes (default: true)")

	sessionTTL := flag.String("session-ttl", "", "Session idle timeout (default: 30m)")
	sessionGCInterval := flag.String("session-gc-interval", "", "Session sweep interval (default: 5m)")

	readerBaseURL := flag.String("reader-url", "", "Base URL of the reader service")

	ocrAPIKey := flag.String("ocr-api-key", "", "OCR.space API key")
	ocrLanguage := flag.String("ocr-language", "", "OCR language code (default: eng)")

	ttsProvider := flag.String("tts-provider", "", "Default TTS provider (default: cartesia)")
	cartesiaAPIKey := flag.String("cartesia-api-key", "", "Cartesia API key")
	cartesiaVoice := flag.String("cartesia-voice", "", "Cartesia voice id")
	elevenAPIKey := flag.String("elevenlabs-api-key", "", "ElevenLabs API key")
	elevenVoice := flag.String("elevenlabs-voice", "", "ElevenLabs voice id")

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
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Server: ServerConfig{
			Name:           getConfigValue(*serverName, "SERVER_NAME", "PageVoice Server"),
			Port:           getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			AdvertiseMDNS:  getBoolConfigValue(*advertiseMDNS, "ADVERTISE_MDNS", true),
			WatchArtifacts: getBoolConfigValue(*watchArtifacts, "WATCH_ARTIFACTS", true),
		},
		Reader: ReaderConfig{
			BaseURL: getConfigValue(*readerBaseURL, "READER_BASE_URL", ""),
		},
		OCR: OCRConfig{
			APIKey:   getConfigValue(*ocrAPIKey, "OCR_API_KEY", ""),
			Language: getConfigValue(*ocrLanguage, "OCR_LANGUAGE", "eng"),
		},
		TTS: TTSConfig{
			DefaultProvider:          getConfigValue(*ttsProvider, "TTS_DEFAULT_PROVIDER", "cartesia"),
			BenchmarkIntervalSeconds: getFloatConfigValue("", "BENCHMARK_INTERVAL_SECONDS", 5),
			CartesiaAPIKey:           getConfigValue(*cartesiaAPIKey, "CARTESIA_API_KEY", ""),
			CartesiaVoice:            getConfigValue(*cartesiaVoice, "CARTESIA_VOICE", ""),
			ElevenLabsAPIKey:         getConfigValue(*elevenAPIKey, "ELEVENLABS_API_KEY", ""),
			ElevenLabsVoice:          getConfigValue(*elevenVoice, "ELEVENLABS_VOICE", ""),
		},
	}

	var err error
	cfg.Session.TTL, err = parseDurationValue(*sessionTTL, "SESSION_TTL", "30m")
	if err != nil {
		return nil, err
	}
	cfg.Session.GCInterval, err = parseDurationValue(*sessionGCInterval, "SESSION_GC_INTERVAL", "5m")
	if err != nil {
		return nil, err
	}
	cfg.Server.ReadTimeout, err = parseDurationValue(*readTimeout, "SERVER_READ_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}
	cfg.Server.WriteTimeout, err = parseDurationValue(*writeTimeout, "SERVER_WRITE_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}
	cfg.Server.IdleTimeout, err = parseDurationValue(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
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

	if c.Reader.BaseURL == "" {
		return errors.New("READER_BASE_URL is required")
	}

	switch c.TTS.DefaultProvider {
	case "cartesia", "elevenlabs":
	default:
		return fmt.Errorf("invalid default tts provider: %s (must be cartesia or elevenlabs)", c.TTS.DefaultProvider)
	}

	if c.TTS.BenchmarkIntervalSeconds <= 0 {
		return fmt.Errorf("benchmark interval must be positive, got %v", c.TTS.BenchmarkIntervalSeconds)
	}

	return nil
}

// parseDurationValue resolves a duration with flag > env > default precedence.
func parseDurationValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	str := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(str)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, str, err)
	}
	return d, nil
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

// expandDataPath expands ~ and makes the path absolute.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "PageVoice", "data")

	expanded, err := expandPath(c.Data.BasePath, defaultPath)
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
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

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getFloatConfigValue returns a float from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result float64
	if _, err := fmt.Sscanf(strValue, "%g", &result); err != nil {
		return defaultValue
	}
	return result
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)

		// Env vars take precedence over the .env file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
