package command

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/mirrorsync/internal/cli/repl"
)

// ShellCommand starts the interactive shell.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Start an interactive shell",
		Action: func(c *cli.Context) error {
			if _, ok := c.App.Metadata[metaShell]; ok {
				return fmt.Errorf("already in a shell")
			}
			mgr, err := manager(c)
			if err != nil {
				return err
			}

			app := c.App
			app.Metadata[metaShell] = true
			// Errors are printed by the loop; they must not end the process.
			prevExit := app.ExitErrHandler
			app.ExitErrHandler = func(*cli.Context, error) {}
			defer func() {
				delete(app.Metadata, metaShell)
				app.ExitErrHandler = prevExit
				ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
				defer cancel()
				if err := mgr.Close(ctx); err != nil {
					fmt.Fprintf(app.ErrWriter, "close: %v\n", err)
				}
			}()

			in := app.Reader
			if in == nil {
				in = os.Stdin
			}
			fmt.Fprintf(stdout(c), "mirrorsync shell on %s, type help or exit\n", mgr.ProviderName())

			r := repl.New(in, stdout(c), func(args []string) error {
				return app.RunContext(c.Context, append([]string{app.Name}, args...))
			},
				repl.WithCompleter(repl.NewCompleter(commandLines(app.Commands)...)),
				repl.WithHistory(repl.NewHistory(GetConfig(c).History)),
			)
			return r.Run()
		},
	}
}

// commandLines lists every command path, e.g. "server status".
func commandLines(cmds []*cli.Command) []string {
	var lines []string
	for _, cmd := range cmds {
		if cmd.Hidden {
			continue
		}
		names := append([]string{cmd.Name}, cmd.Aliases...)
		for _, name := range names {
			lines = append(lines, name)
			for _, sub := range commandLines(cmd.Subcommands) {
				lines = append(lines, name+" "+sub)
			}
		}
	}
	return lines
}
