package config

import (
	"os"
	"path/filepath"

	"github.com/yndnr/mirrorsync/internal/registry"
)

// CLIConfig is the configuration for mirrorsync-cli.
type CLIConfig struct {
	// Provider is the storage flavor the commands act on.
	Provider string `koanf:"provider" yaml:"provider"`

	// Output is table, json or yaml.
	Output string `koanf:"output" yaml:"output"`

	// History is the shell history file.
	History string `koanf:"history" yaml:"history"`

	Storage registry.StorageConfig `koanf:"storage" yaml:"storage"`
	Sync    registry.SyncConfig    `koanf:"sync" yaml:"sync"`
	Codec   registry.CodecConfig   `koanf:"codec" yaml:"codec"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	home := HomeDir()
	rc := registry.DefaultConfig(filepath.Join(home, "data"))
	return &CLIConfig{
		Provider: registry.LocalStorage,
		Output:   "table",
		History:  filepath.Join(home, "history"),
		Storage:  rc.Storage,
		Sync:     rc.Sync,
		Codec:    rc.Codec,
	}
}

// Registry returns the settings for registry.New.
func (c *CLIConfig) Registry() registry.Config {
	return registry.Config{
		Storage: c.Storage,
		Sync:    c.Sync,
		Codec:   c.Codec,
	}
}

// HomeDir is the per-user CLI directory, ~/.mirrorsync.
func HomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = os.TempDir()
	}
	return filepath.Join(homeDir, ".mirrorsync")
}
