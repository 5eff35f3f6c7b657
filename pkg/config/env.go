// Package config loads client configuration from YAML files and the
// process environment. Nothing here runs implicitly; the hosting
// application calls it once at startup.
package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is read by LoadEnv when no file is named
const DefaultEnvFile = ".env"

// LoadEnv reads KEY=VALUE files into the process environment. Variables
// that are already set are left untouched. With no arguments it reads
// DefaultEnvFile and ignores its absence; named files must exist.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		err := godotenv.Load(DefaultEnvFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", DefaultEnvFile, err)
		}
		return nil
	}

	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", file, err)
		}
	}
	return nil
}
