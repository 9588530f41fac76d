// Package config loads the conversion policy and tool settings from
// webpify.yaml, the environment and command-line overrides.
package config

import (
	"fmt"
	"strings"

	"webpify/internal/errs"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "webpify.yaml"

// Mode selects between a production build and a development build.
// Development builds never transcode; they only strip opt-out markers.
type Mode string

const (
	ModeProduction  Mode = "production"
	ModeDevelopment Mode = "development"
)

// Policy controls how images are converted and which text assets are rewritten.
type Policy struct {
	Quality          int  `yaml:"quality"`
	Lossless         bool `yaml:"lossless"`
	OnlySmallerFiles bool `yaml:"only_smaller_files"`
	MinQuality       int  `yaml:"min_quality"`
	ProcessCSS       bool `yaml:"process_css"`
	ProcessImport    bool `yaml:"process_import"`
}

// Config represents a webpify.yaml file. All values are optional; flags
// override whatever the file sets.
type Config struct {
	Policy  `yaml:",inline"`
	Mode    Mode              `yaml:"mode"`
	Aliases map[string]string `yaml:"aliases"`
	State   string            `yaml:"state"`
	Log     LogConfig         `yaml:"log"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultPolicy returns the documented defaults.
func DefaultPolicy() Policy {
	return Policy{
		Quality:          85,
		Lossless:         false,
		OnlySmallerFiles: true,
		MinQuality:       70,
		ProcessCSS:       true,
		ProcessImport:    true,
	}
}

// Defaults returns a Config populated with default values.
func Defaults() Config {
	return Config{
		Policy: DefaultPolicy(),
		Mode:   ModeProduction,
		Log:    LogConfig{Level: "warn"},
	}
}

// Validate rejects out-of-range or inconsistent quality settings.
func (p Policy) Validate() error {
	if p.Quality < 0 || p.Quality > 100 {
		return errs.Config("quality must be within [0,100], got %d", p.Quality)
	}
	if p.MinQuality < 0 || p.MinQuality > 100 {
		return errs.Config("min_quality must be within [0,100], got %d", p.MinQuality)
	}
	if p.MinQuality > p.Quality {
		return errs.Config("min_quality %d exceeds quality %d", p.MinQuality, p.Quality)
	}
	return nil
}

// Validate checks the policy plus the tool settings around it.
func (c Config) Validate() error {
	if err := c.Policy.Validate(); err != nil {
		return err
	}
	switch c.Mode {
	case ModeProduction, ModeDevelopment:
	default:
		return errs.Config("unknown mode %q (want %q or %q)", c.Mode, ModeProduction, ModeDevelopment)
	}
	for alias, target := range c.Aliases {
		if strings.TrimSpace(alias) == "" || strings.TrimSpace(target) == "" {
			return errs.Config("alias entries need a name and a target, got %q=%q", alias, target)
		}
	}
	return nil
}

// Development reports whether the config selects a development build.
func (c Config) Development() bool {
	return c.Mode == ModeDevelopment
}

// ParseAlias splits a "name=dir" flag value.
func ParseAlias(s string) (string, string, error) {
	name, target, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	target = strings.TrimSpace(target)
	if !ok || name == "" || target == "" {
		return "", "", fmt.Errorf("alias %q must look like name=dir", s)
	}
	return name, target, nil
}
