package command

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

// DefaultCommand fills missing keys from a YAML file.
func DefaultCommand() *cli.Command {
	return &cli.Command{
		Name:      "default",
		Usage:     "Fill keys that are absent or null from a YAML file",
		ArgsUsage: "FILE",
		Description: "FILE is a YAML mapping of key to value. Keys that already hold a\n" +
			"value are left unchanged.",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("default requires a FILE")
			}
			defaults, err := readDefaults(c.Args().First())
			if err != nil {
				return err
			}

			mgr, err := manager(c)
			if err != nil {
				return err
			}
			mir, err := mgr.Mirror(c.Context)
			if err != nil {
				return err
			}
			mir.DefaultFill(c.Context, defaults)
			return nil
		},
	}
}

// ResetCommand clears the namespace and optionally applies defaults.
func ResetCommand() *cli.Command {
	return &cli.Command{
		Name:      "reset",
		Usage:     "Remove every key of the namespace, then apply defaults from FILE",
		ArgsUsage: "[FILE]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Do not ask for confirmation",
			},
		},
		Action: func(c *cli.Context) error {
			var defaults map[string]any
			if c.NArg() > 0 {
				d, err := readDefaults(c.Args().First())
				if err != nil {
					return err
				}
				defaults = d
			}

			mgr, err := manager(c)
			if err != nil {
				return err
			}
			if !c.Bool("yes") {
				return fmt.Errorf("reset removes every key of %s; pass --yes to confirm", mgr.ProviderName())
			}
			mir, err := mgr.Mirror(c.Context)
			if err != nil {
				return err
			}
			mir.Reset(c.Context, defaults)
			fmt.Fprintf(stdout(c), "%s reset, %d keys\n", mgr.ProviderName(), mir.Len())
			return nil
		},
	}
}

func readDefaults(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read defaults: %w", err)
	}
	var defaults map[string]any
	if err := yaml.Unmarshal(data, &defaults); err != nil {
		return nil, fmt.Errorf("parse defaults %s: %w", path, err)
	}
	return defaults, nil
}
