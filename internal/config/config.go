package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIURL         = "https://open.beatpass.ca/key_bpm_handler.php"
	DefaultFingerprintURL = "https://open.beatpass.ca/fingerprint.php"
	DefaultConfigFile     = "config.json"
	DefaultPendingStore   = "pending.db"
)

// Config holds the bpguard configuration
type Config struct {
	APIURL                   string `json:"APIURL"`
	FingerprintURL           string `json:"FingerprintURL"`
	RequestTimeoutSec        int    `json:"RequestTimeoutSec"`
	MaxRetryAttempts         int    `json:"MaxRetryAttempts"`
	RetryInitialDelayMs      int    `json:"RetryInitialDelayMs"`
	RetryMaxDelayMs          int    `json:"RetryMaxDelayMs"`
	RateLimitMs              int    `json:"RateLimitMs"` // minimum spacing between requests
	BurstLimit               int    `json:"BurstLimit"`
	BatchSize                int    `json:"BatchSize"`
	BatchDelayMs             int    `json:"BatchDelayMs"`
	NotificationDurationMs   int    `json:"NotificationDurationMs"`
	WatchIntervalSec         int    `json:"WatchIntervalSec"`
	PendingStorePath         string `json:"PendingStorePath"`
	ContinueOnPersistFailure bool   `json:"ContinueOnPersistFailure"`
	Debug                    bool   `json:"Debug"`
}

// GetDefaultConfig returns the default configuration
func GetDefaultConfig() *Config {
	return &Config{
		APIURL:                 DefaultAPIURL,
		FingerprintURL:         DefaultFingerprintURL,
		RequestTimeoutSec:      60,
		MaxRetryAttempts:       3,
		RetryInitialDelayMs:    1000,
		RetryMaxDelayMs:        15000,
		RateLimitMs:            250,
		BurstLimit:             8,
		BatchSize:              5,
		BatchDelayMs:           300,
		NotificationDurationMs: 5000,
		WatchIntervalSec:       10,
		PendingStorePath:       DefaultPendingStore,
	}
}

// ApplyDefaults fills zero-valued fields from the defaults
func (cfg *Config) ApplyDefaults() {
	defaults := GetDefaultConfig()

	if cfg.APIURL == "" {
		cfg.APIURL = defaults.APIURL
	}
	if cfg.FingerprintURL == "" {
		cfg.FingerprintURL = defaults.FingerprintURL
	}
	if cfg.RequestTimeoutSec <= 0 {
		cfg.RequestTimeoutSec = defaults.RequestTimeoutSec
	}
	if cfg.MaxRetryAttempts <= 0 {
		cfg.MaxRetryAttempts = defaults.MaxRetryAttempts
	}
	if cfg.RetryInitialDelayMs <= 0 {
		cfg.RetryInitialDelayMs = defaults.RetryInitialDelayMs
	}
	if cfg.RetryMaxDelayMs <= 0 {
		cfg.RetryMaxDelayMs = defaults.RetryMaxDelayMs
	}
	if cfg.RateLimitMs <= 0 {
		cfg.RateLimitMs = defaults.RateLimitMs
	}
	if cfg.BurstLimit <= 0 {
		cfg.BurstLimit = defaults.BurstLimit
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.BatchDelayMs < 0 {
		cfg.BatchDelayMs = defaults.BatchDelayMs
	}
	if cfg.NotificationDurationMs <= 0 {
		cfg.NotificationDurationMs = defaults.NotificationDurationMs
	}
	if cfg.WatchIntervalSec <= 0 {
		cfg.WatchIntervalSec = defaults.WatchIntervalSec
	}
	if cfg.PendingStorePath == "" {
		cfg.PendingStorePath = defaults.PendingStorePath
	}
}

// Validate checks the settings the engine cannot run without
func (cfg *Config) Validate() error {
	if cfg.APIURL == "" {
		return fmt.Errorf("API URL is required")
	}
	if cfg.FingerprintURL == "" {
		return fmt.Errorf("fingerprint URL is required")
	}
	if !strings.HasPrefix(cfg.APIURL, "http://") && !strings.HasPrefix(cfg.APIURL, "https://") {
		return fmt.Errorf("API URL must be http(s): %s", cfg.APIURL)
	}
	if !strings.HasPrefix(cfg.FingerprintURL, "http://") && !strings.HasPrefix(cfg.FingerprintURL, "https://") {
		return fmt.Errorf("fingerprint URL must be http(s): %s", cfg.FingerprintURL)
	}
	if cfg.BatchSize < 0 {
		return fmt.Errorf("batch size cannot be negative")
	}
	return nil
}

func (cfg *Config) RequestTimeout() time.Duration {
	return time.Duration(cfg.RequestTimeoutSec) * time.Second
}

func (cfg *Config) RetryInitialDelay() time.Duration {
	return time.Duration(cfg.RetryInitialDelayMs) * time.Millisecond
}

func (cfg *Config) RetryMaxDelay() time.Duration {
	return time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond
}

func (cfg *Config) RateLimit() time.Duration {
	return time.Duration(cfg.RateLimitMs) * time.Millisecond
}

func (cfg *Config) BatchDelay() time.Duration {
	return time.Duration(cfg.BatchDelayMs) * time.Millisecond
}

func (cfg *Config) NotificationDuration() time.Duration {
	return time.Duration(cfg.NotificationDurationMs) * time.Millisecond
}

func (cfg *Config) WatchInterval() time.Duration {
	return time.Duration(cfg.WatchIntervalSec) * time.Second
}

// CreateDirIfNotExists creates a directory if it does not exist
func CreateDirIfNotExists(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

// LoadConfig loads configuration from a JSON file
func LoadConfig(filePath string, config *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

// SaveConfig saves configuration to a JSON file
func SaveConfig(filePath string, config *Config) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	dir := filepath.Dir(filePath)
	if err := CreateDirIfNotExists(dir); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadEnvFile loads a .env file into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnvOverrides overrides config values from BEATPASS_* environment variables
func ApplyEnvOverrides(cfg *Config) {
	cfg.APIURL = getEnv("BEATPASS_API_URL", cfg.APIURL)
	cfg.FingerprintURL = getEnv("BEATPASS_FINGERPRINT_URL", cfg.FingerprintURL)
	cfg.PendingStorePath = getEnv("BEATPASS_PENDING_STORE", cfg.PendingStorePath)
	cfg.RequestTimeoutSec = getEnvInt("BEATPASS_REQUEST_TIMEOUT_SEC", cfg.RequestTimeoutSec)
	cfg.MaxRetryAttempts = getEnvInt("BEATPASS_MAX_RETRIES", cfg.MaxRetryAttempts)
	cfg.BatchSize = getEnvInt("BEATPASS_BATCH_SIZE", cfg.BatchSize)
	cfg.BatchDelayMs = getEnvInt("BEATPASS_BATCH_DELAY_MS", cfg.BatchDelayMs)
	cfg.ContinueOnPersistFailure = getEnvBool("BEATPASS_CONTINUE_ON_PERSIST_FAILURE", cfg.ContinueOnPersistFailure)
	cfg.Debug = getEnvBool("BEATPASS_DEBUG", cfg.Debug)
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}
