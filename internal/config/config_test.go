package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{APIURL: "https://example.test/key_bpm_handler.php", BatchSize: 2}
	cfg.ApplyDefaults()

	if cfg.APIURL != "https://example.test/key_bpm_handler.php" {
		t.Errorf("ApplyDefaults overwrote APIURL: %s", cfg.APIURL)
	}
	if cfg.BatchSize != 2 {
		t.Errorf("Expected BatchSize 2, got %d", cfg.BatchSize)
	}
	if cfg.FingerprintURL != DefaultFingerprintURL {
		t.Errorf("Expected default FingerprintURL, got %s", cfg.FingerprintURL)
	}
	if cfg.PendingStorePath != DefaultPendingStore {
		t.Errorf("Expected default pending store, got %s", cfg.PendingStorePath)
	}
}

func TestValidate(t *testing.T) {
	if err := GetDefaultConfig().Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}

	invalid := &Config{}
	if err := invalid.Validate(); err == nil {
		t.Error("Empty config should fail validation")
	}

	badScheme := GetDefaultConfig()
	badScheme.APIURL = "ftp://example.test"
	if err := badScheme.Validate(); err == nil {
		t.Error("Non-http API URL should fail validation")
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := GetDefaultConfig()
	cfg.BatchSize = 9
	cfg.ContinueOnPersistFailure = true
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded := &Config{}
	if err := LoadConfig(path, loaded); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.BatchSize != 9 || !loaded.ContinueOnPersistFailure {
		t.Errorf("Loaded config does not match saved config: %+v", loaded)
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("BEATPASS_BATCH_SIZE=11\n"), 0644); err != nil {
		t.Fatalf("Failed to write env file: %v", err)
	}
	t.Setenv("BEATPASS_API_URL", "https://env.example.test/handler.php")
	t.Setenv("BEATPASS_CONTINUE_ON_PERSIST_FAILURE", "true")
	defer os.Unsetenv("BEATPASS_BATCH_SIZE")

	if err := LoadEnvFile(envFile); err != nil {
		t.Fatalf("LoadEnvFile failed: %v", err)
	}

	cfg := GetDefaultConfig()
	ApplyEnvOverrides(cfg)

	if cfg.APIURL != "https://env.example.test/handler.php" {
		t.Errorf("Expected env APIURL, got %s", cfg.APIURL)
	}
	if cfg.BatchSize != 11 {
		t.Errorf("Expected BatchSize from .env, got %d", cfg.BatchSize)
	}
	if !cfg.ContinueOnPersistFailure {
		t.Error("Expected ContinueOnPersistFailure from env")
	}
}

func TestLoadEnvFileMissing(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("Missing env file should not be an error: %v", err)
	}
}
