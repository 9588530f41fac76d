package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"webpify/internal/errs"
)

// LoadDotEnv loads variables from the given .env files (or ./.env when none
// are named) without overriding the process environment. Missing files are
// ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("cannot load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads a YAML config file on top of Defaults, expanding environment
// variables first. A missing file is only an error when required is set.
func Load(path string, required bool) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return cfg, nil
		}
		if os.IsNotExist(err) {
			return cfg, errs.Config("config file not found: %s", path)
		}
		return cfg, errs.IO("read config", path, err)
	}

	expanded := ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return cfg, errs.Config("invalid YAML in %s: %w", path, err)
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeProduction
	}

	return cfg, nil
}
