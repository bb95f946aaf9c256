package command

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/mirrorsync/internal/cli/config"
	"github.com/yndnr/mirrorsync/internal/cli/output"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "CLI configuration",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the effective configuration",
				Action: configShow,
			},
			{
				Name:   "path",
				Usage:  "Print the configuration file path",
				Action: configPath,
			},
			{
				Name:  "init",
				Usage: "Write the effective configuration to the configuration file",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
				Action: configInit,
			},
		},
	}
}

func configShow(c *cli.Context) error {
	cfg := config.Sanitized(GetConfig(c))
	if isTable(c) {
		return output.Print(stdout(c), output.FormatYAML, false, cfg)
	}
	return render(c, cfg)
}

func configPath(c *cli.Context) error {
	fmt.Fprintln(stdout(c), c.String("config"))
	return nil
}

func configInit(c *cli.Context) error {
	path := c.String("config")
	if _, err := os.Stat(path); err == nil && !c.Bool("force") {
		return fmt.Errorf("%s exists; pass --force to overwrite", path)
	}
	if err := config.Save(GetConfig(c), path); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Fprintf(stdout(c), "wrote %s\n", path)
	return nil
}
