package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromFileAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("initiator: node-1\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if cfg.Initiator != "node-1" {
		t.Errorf("Initiator = %q, want %q", cfg.Initiator, "node-1")
	}
	if cfg.StateManager != StateManagerInternal {
		t.Errorf("StateManager = %q, want %q", cfg.StateManager, StateManagerInternal)
	}
	if cfg.Threads.Heartbeats != 1 {
		t.Errorf("Threads.Heartbeats = %d, want 1", cfg.Threads.Heartbeats)
	}
	if len(cfg.Fleet) != 1 || cfg.Fleet[0] != "*" {
		t.Errorf("Fleet = %v, want [*]", cfg.Fleet)
	}
}

func TestLoadFromFileRejectsMalformedContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("not: [valid"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := LoadFromFile(path); err == nil {
		t.Fatal("expected an error for malformed config content")
	}
}

func TestLoadFallsBackToEnvironmentOnlyConfig(t *testing.T) {
	t.Setenv("EDGENET_INITIATOR", "env-node")

	cfg, err := Load(LoaderOptions{ConfigDir: filepath.Join(t.TempDir(), "missing")})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Initiator != "env-node" {
		t.Errorf("Initiator = %q, want %q", cfg.Initiator, "env-node")
	}
}

func TestLoadRequiresInitiator(t *testing.T) {
	if _, err := Load(LoaderOptions{ConfigDir: filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Fatal("expected an error when no initiator is configured")
	}
}

func TestSubstituteEnvVarsUsesDefaultWhenUnset(t *testing.T) {
	os.Unsetenv("EDGENET_TEST_VAR")
	got := SubstituteEnvVars("value=${EDGENET_TEST_VAR:fallback}")
	if got != "value=fallback" {
		t.Errorf("SubstituteEnvVars = %q, want %q", got, "value=fallback")
	}
}

func TestSubstituteEnvVarsPrefersSetValue(t *testing.T) {
	t.Setenv("EDGENET_TEST_VAR", "actual")
	got := SubstituteEnvVars("value=${EDGENET_TEST_VAR:fallback}")
	if got != "value=actual" {
		t.Errorf("SubstituteEnvVars = %q, want %q", got, "value=actual")
	}
}

func TestEncryptAndSecureDefaultToTrue(t *testing.T) {
	cfg := &Config{}
	if !cfg.EncryptEnabled() {
		t.Error("EncryptEnabled() should default to true")
	}
	if !cfg.SecureEnabled() {
		t.Error("SecureEnabled() should default to true")
	}
}

func TestEncryptAndSecureRespectExplicitFalse(t *testing.T) {
	f := false
	cfg := &Config{Blockchain: Blockchain{Encrypt: &f, Secure: &f}}
	if cfg.EncryptEnabled() {
		t.Error("EncryptEnabled() should be false when explicitly set")
	}
	if cfg.SecureEnabled() {
		t.Error("SecureEnabled() should be false when explicitly set")
	}
}
