package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// DefaultEnvPath is the optional dotenv file holding secrets such as the
// API key.
func DefaultEnvPath() string {
	return filepath.Join(AppDir(), ".env")
}

// LoadDotEnv exports variables from path without overriding ones already
// set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
