package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/mirrorsync/internal/cli/config"
	"github.com/yndnr/mirrorsync/internal/cli/connection"
	"github.com/yndnr/mirrorsync/internal/cli/output"
	"github.com/yndnr/mirrorsync/internal/infra/buildinfo"
	"github.com/yndnr/mirrorsync/internal/registry"
	"github.com/yndnr/mirrorsync/internal/telemetry/logger"
)

// Metadata keys.
const (
	metaConfig  = "config"
	metaManager = "connMgr"
	metaShell   = "shell"
)

// closeTimeout bounds the final flush when a command ends.
const closeTimeout = 10 * time.Second

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:                 "mirrorsync-cli",
		Usage:                "Inspect and edit mirrorsync state",
		Version:              buildinfo.String(),
		Flags:                globalFlags(),
		EnableBashCompletion: true,
		Commands:             Commands(),
		Before:               before,
		After:                after,
	}
}

// Commands returns every top-level command.
func Commands() []*cli.Command {
	return []*cli.Command{
		GetCommand(),
		SetCommand(),
		RemoveCommand(),
		KeysCommand(),
		DumpCommand(),
		DefaultCommand(),
		ResetCommand(),
		WatchCommand(),
		ProbeCommand(),
		ServerCommand(),
		ConfigCommand(),
		VersionCommand(),
		ShellCommand(),
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "CLI configuration file",
			EnvVars: []string{"MIRRORSYNC_CLI_CONFIG"},
			Value:   config.DefaultConfigPath(),
		},
		&cli.StringFlag{
			Name:    "provider",
			Aliases: []string{"p"},
			Usage:   "Provider to act on: localStorage, sessionStorage, extensionStorage",
		},
		&cli.StringFlag{
			Name:    "backend",
			Aliases: []string{"b"},
			Usage:   "Storage backend: badger, nutsdb, file, memory, noop or remote",
		},
		&cli.StringFlag{
			Name:    "dir",
			Aliases: []string{"d"},
			Usage:   "Data directory of the badger, nutsdb or file backend",
		},
		&cli.StringFlag{
			Name:    "remote",
			Aliases: []string{"r"},
			Usage:   "mirrorsync-server address, e.g. 127.0.0.1:7480",
		},
		&cli.StringFlag{
			Name:    "token",
			Usage:   "Bearer token for mirrorsync-server",
			EnvVars: []string{"MIRRORSYNC_CLI_TOKEN"},
		},
		&cli.StringFlag{
			Name:  "ca-file",
			Usage: "PEM file of CAs trusted for an https server",
		},
		&cli.StringFlag{
			Name:  "prefix",
			Usage: "Key prefix of the namespace",
		},
		&cli.StringFlag{
			Name:  "serializer",
			Usage: "Value serializer: json or yaml",
		},
		&cli.StringFlag{
			Name:    "seal-key",
			Usage:   "Secret that encrypts stored values",
			EnvVars: []string{"MIRRORSYNC_CLI_SEAL_KEY"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Log engine activity to stderr",
		},
	}
}

// overrides maps the flags the user set onto configuration keys.
func overrides(c *cli.Context) map[string]any {
	o := make(map[string]any)
	set := func(flag, key string) {
		if c.IsSet(flag) {
			o[key] = c.String(flag)
		}
	}
	set("provider", "provider")
	set("dir", "storage.dir")
	set("token", "storage.remote.token")
	set("ca-file", "storage.remote.ca_file")
	set("prefix", "codec.key_prefix")
	set("serializer", "codec.format")
	set("seal-key", "codec.seal_key")
	set("output", "output")

	if c.IsSet("remote") {
		o["storage.remote.address"] = c.String("remote")
	}
	if c.IsSet("backend") {
		switch b := c.String("backend"); b {
		case registry.KindRemote:
			if !c.IsSet("provider") {
				o["provider"] = registry.ExtensionStorage
			}
		default:
			o["storage.durable"] = b
			if b == registry.KindMemory && !c.IsSet("provider") {
				o["provider"] = registry.LocalStorage
			}
		}
	}
	return o
}

func before(c *cli.Context) error {
	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]any)
	}
	// The shell reuses the session opened by its first invocation.
	if _, ok := c.App.Metadata[metaManager]; ok {
		return nil
	}

	cfg, err := config.Load(c.String("config"), overrides(c))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if _, err := output.ParseFormat(cfg.Output); err != nil {
		return err
	}

	level := "error"
	if c.Bool("verbose") {
		level = "debug"
	}
	log := logger.New(logger.Config{Level: level, Format: "text", Output: c.App.ErrWriter})

	c.App.Metadata[metaConfig] = cfg
	c.App.Metadata[metaManager] = connection.NewManager(cfg.Registry(), cfg.Provider, log)
	return nil
}

func after(c *cli.Context) error {
	if _, ok := c.App.Metadata[metaShell]; ok {
		return nil
	}
	mgr := GetConnectionManager(c)
	if mgr == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return mgr.Close(ctx)
}

// GetConnectionManager retrieves the connection manager from context.
func GetConnectionManager(c *cli.Context) *connection.Manager {
	if mgr, ok := c.App.Metadata[metaManager].(*connection.Manager); ok {
		return mgr
	}
	return nil
}

// GetConfig retrieves the effective configuration from context.
func GetConfig(c *cli.Context) *config.CLIConfig {
	if cfg, ok := c.App.Metadata[metaConfig].(*config.CLIConfig); ok {
		return cfg
	}
	return config.Default()
}

func manager(c *cli.Context) (*connection.Manager, error) {
	mgr := GetConnectionManager(c)
	if mgr == nil {
		return nil, fmt.Errorf("connection manager not initialized")
	}
	return mgr, nil
}

// render formats data in the selected output format. A command flag wins
// over the global one.
func render(c *cli.Context, data any) error {
	format, err := output.ParseFormat(outputName(c))
	if err != nil {
		return err
	}
	return output.Print(stdout(c), format, c.Bool("wide"), data)
}

func outputName(c *cli.Context) string {
	for _, ctx := range c.Lineage() {
		if ctx.IsSet("output") {
			return ctx.String("output")
		}
	}
	return GetConfig(c).Output
}

func isTable(c *cli.Context) bool {
	f, _ := output.ParseFormat(outputName(c))
	return f == output.FormatTable
}

func stdout(c *cli.Context) io.Writer {
	if c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}
