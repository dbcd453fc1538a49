package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDotEnv(t *testing.T) {
	const fresh = "UPLOAD_AI_TEST_FRESH"
	const preset = "UPLOAD_AI_TEST_PRESET"
	t.Setenv(fresh, "")
	os.Unsetenv(fresh)
	t.Setenv(preset, "from-shell")

	path := filepath.Join(t.TempDir(), ".env")
	content := fresh + "=from-file\n" + preset + "=from-file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv(fresh); got != "from-file" {
		t.Fatalf("%s = %q, want from-file", fresh, got)
	}
	if got := os.Getenv(preset); got != "from-shell" {
		t.Fatalf("%s = %q, shell value must win", preset, got)
	}
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("missing file should be ignored, got %v", err)
	}
}
