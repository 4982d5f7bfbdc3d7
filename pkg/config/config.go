// Package config loads rulesift configuration by layering embedded
// defaults, an optional user config file, and RULESIFT_ environment
// variables. Command-line flags override all of it.
package config

import (
	_ "embed"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	sifterr "github.com/rulesift/rulesift/pkg/errors"
)

//go:embed embedded/defaults.toml
var defaultConfig []byte

// Config holds the user-tunable defaults
type Config struct {
	Logging LoggingConfig `koanf:"logging" toml:"logging"`
	Output  OutputConfig  `koanf:"output" toml:"output"`
}

// LoggingConfig controls diagnostic output
type LoggingConfig struct {
	// Verbosity maps to log levels: 0 warn, 1 info, 2 debug, 3+ trace
	Verbosity int `koanf:"verbosity" toml:"verbosity"`
}

// OutputConfig controls output file lifecycle defaults
type OutputConfig struct {
	// Overwrite makes output files truncate-or-create instead of
	// failing when the target already exists
	Overwrite bool `koanf:"overwrite" toml:"overwrite"`
}

type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New("not implemented")
}

// Load builds the effective configuration: embedded defaults, then the
// user config file if present, then RULESIFT_ environment variables
func Load() (*Config, error) {
	k := koanf.New(".")

	// 1. Embedded defaults
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, sifterr.Wrap(err, sifterr.ErrConfigLoad, "failed to load default configuration")
	}

	// 2. User config file, if one exists
	if path := userConfigPath(); path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, sifterr.Wrapf(err, sifterr.ErrConfigLoad, "failed to load configuration from %s", path)
			}
		}
	}

	// 3. Environment variables: RULESIFT_LOGGING_VERBOSITY -> logging.verbosity
	if err := k.Load(env.Provider("RULESIFT_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "RULESIFT_")), "_", ".")
	}), nil); err != nil {
		return nil, sifterr.Wrap(err, sifterr.ErrConfigLoad, "failed to load environment configuration")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, sifterr.Wrap(err, sifterr.ErrConfigLoad, "failed to unmarshal configuration")
	}

	return &cfg, nil
}

// userConfigPath returns the XDG location of the user config file
func userConfigPath() string {
	if xdg.ConfigHome == "" {
		return ""
	}
	return filepath.Join(xdg.ConfigHome, "rulesift", "rulesift.toml")
}
