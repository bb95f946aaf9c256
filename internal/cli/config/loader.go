package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/yndnr/mirrorsync/internal/infra/confloader"
)

// EnvPrefix selects the environment variables read by the CLI.
const EnvPrefix = "MIRRORSYNC_CLI_"

// DefaultConfigPath returns the default CLI config file path.
func DefaultConfigPath() string {
	return filepath.Join(HomeDir(), "cli.yaml")
}

// Load reads the config file, the environment and overrides on top of the
// defaults. A missing file is not an error. Override keys use dotted form,
// e.g. "storage.dir".
func Load(path string, overrides map[string]any) (*CLIConfig, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	opts := []confloader.Option{
		confloader.WithEnvPrefix(EnvPrefix),
		confloader.WithOverrides(overrides),
	}
	if _, err := os.Stat(path); err == nil {
		opts = append(opts, confloader.WithConfigFile(path))
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	cfg := Default()
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML. The file may hold a seal key or token, so it is
// private to the user.
func Save(cfg *CLIConfig, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Sanitized returns a copy with secrets masked, for display.
func Sanitized(cfg *CLIConfig) *CLIConfig {
	cp := *cfg
	if cp.Codec.SealKey != "" {
		cp.Codec.SealKey = "******"
	}
	if cp.Storage.Remote.Token != "" {
		cp.Storage.Remote.Token = "******"
	}
	return &cp
}
