package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"upload-ai/internal/domain"
)

const appDirName = ".upload-ai"

// Environment overrides, applied on top of the settings file.
const (
	EnvFFmpegPath = "UPLOAD_AI_FFMPEG"
	EnvLogLevel   = "LOG_LEVEL"
	EnvAPIKey     = "OPENAI_API_KEY"
)

// AppDir returns the per-user application directory.
func AppDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, appDirName)
}

// DefaultPath is where the settings file lives.
func DefaultPath() string {
	return filepath.Join(AppDir(), "settings.json")
}

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	return domain.Settings{
		FFmpegPath:         "ffmpeg",
		WorkspaceDir:       filepath.Join(AppDir(), "workspace"),
		TranscriptionModel: "whisper-1",
		Language:           "auto",
		LogLevel:           "info",
	}
}

// ApplyEnv overlays environment overrides onto cfg.
func ApplyEnv(cfg domain.Settings, getenv func(string) string) domain.Settings {
	if v := strings.TrimSpace(getenv(EnvFFmpegPath)); v != "" {
		cfg.FFmpegPath = v
	}
	if v := strings.ToLower(strings.TrimSpace(getenv(EnvLogLevel))); v != "" {
		cfg.LogLevel = v
	}
	return cfg
}

// Validate rejects settings the application cannot start with.
func Validate(cfg domain.Settings) error {
	if strings.TrimSpace(cfg.FFmpegPath) == "" {
		return fmt.Errorf("ffmpeg path is required")
	}
	if strings.TrimSpace(cfg.WorkspaceDir) == "" {
		return fmt.Errorf("workspace directory is required")
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}
	return nil
}
