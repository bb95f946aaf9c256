package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/mirrorsync/internal/codec"
)

// GetCommand reads one key straight from the backend.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Print the stored value of a key",
		ArgsUsage: "KEY",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("get requires exactly one KEY")
			}
			mgr, err := manager(c)
			if err != nil {
				return err
			}
			p, err := mgr.Provider()
			if err != nil {
				return err
			}

			key := c.Args().First()
			v, found, err := p.Get(c.Context, key)
			if err != nil {
				return fmt.Errorf("get %s: %w", key, err)
			}
			if !found {
				return fmt.Errorf("key %q not found", key)
			}
			return render(c, v)
		},
	}
}

// SetCommand stores a value through the mirror and flushes it.
func SetCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Store a value under a key",
		ArgsUsage: "KEY VALUE",
		Description: "VALUE is parsed with the configured serializer, so '42', 'true' and\n" +
			"'{\"a\":1}' keep their types. Anything it cannot parse is stored as a string.",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "string",
				Aliases: []string{"s"},
				Usage:   "Store VALUE as a string without parsing it",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("set requires KEY and VALUE")
			}
			key, raw := c.Args().Get(0), c.Args().Get(1)

			var v any = raw
			if !c.Bool("string") {
				v = parseValue(GetConfig(c).Codec.Format, raw)
			}

			mgr, err := manager(c)
			if err != nil {
				return err
			}
			mir, err := mgr.Mirror(c.Context)
			if err != nil {
				return err
			}
			mir.Set(key, v)
			mir.Flush(c.Context)
			return nil
		},
	}
}

// parseValue decodes raw with the named format. The sealing layer is not
// involved: command line input is always plain text.
func parseValue(format, raw string) any {
	f, err := codec.FormatByName(format)
	if err != nil {
		return raw
	}
	v, err := f.Deserialize(raw)
	if err != nil {
		return raw
	}
	return v
}

// RemoveCommand deletes keys through the mirror and flushes.
func RemoveCommand() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Aliases:   []string{"del"},
		Usage:     "Remove keys",
		ArgsUsage: "KEY [KEY...]",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return fmt.Errorf("rm requires at least one KEY")
			}
			mgr, err := manager(c)
			if err != nil {
				return err
			}
			mir, err := mgr.Mirror(c.Context)
			if err != nil {
				return err
			}
			for _, key := range c.Args().Slice() {
				mir.Delete(key)
			}
			mir.Flush(c.Context)
			return nil
		},
	}
}

// KeysCommand lists the logical keys of the namespace.
func KeysCommand() *cli.Command {
	return &cli.Command{
		Name:  "keys",
		Usage: "List keys",
		Action: func(c *cli.Context) error {
			mgr, err := manager(c)
			if err != nil {
				return err
			}
			mir, err := mgr.Mirror(c.Context)
			if err != nil {
				return err
			}

			keys := mir.Keys()
			if !isTable(c) {
				return render(c, keys)
			}
			for _, k := range keys {
				fmt.Fprintln(stdout(c), k)
			}
			return nil
		},
	}
}

// DumpCommand prints every key and value of the namespace.
func DumpCommand() *cli.Command {
	return &cli.Command{
		Name:  "dump",
		Usage: "Print all keys and values",
		Action: func(c *cli.Context) error {
			mgr, err := manager(c)
			if err != nil {
				return err
			}
			mir, err := mgr.Mirror(c.Context)
			if err != nil {
				return err
			}
			return render(c, mir.Export())
		},
	}
}
