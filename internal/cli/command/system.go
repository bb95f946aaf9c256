package command

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/mirrorsync/internal/cli/connection"
	"github.com/yndnr/mirrorsync/internal/infra/buildinfo"
	"github.com/yndnr/mirrorsync/internal/infra/tlsroots"
	"github.com/yndnr/mirrorsync/internal/server/httpserver/handler"
)

// requestTimeout bounds calls to the server's HTTP endpoints.
const requestTimeout = 10 * time.Second

// VersionCommand prints the CLI build information.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show CLI version",
		Action: func(c *cli.Context) error {
			if isTable(c) {
				fmt.Fprintln(stdout(c), buildinfo.String())
				return nil
			}
			return render(c, buildinfo.Get())
		},
	}
}

// ServerCommand returns the server subcommand group.
func ServerCommand() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Query a mirrorsync-server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Usage:   "Server address (defaults to --remote)",
			},
		},
		Subcommands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show server backend status",
				Action: serverStatus,
			},
			{
				Name:   "health",
				Usage:  "Check server liveness and readiness",
				Action: serverHealth,
			},
			{
				Name:   "version",
				Usage:  "Show server version",
				Action: serverVersion,
			},
		},
	}
}

func httpClient(c *cli.Context) (*connection.HTTPClient, error) {
	cfg := GetConfig(c)
	addr := c.String("server")
	if addr == "" {
		addr = cfg.Storage.Remote.Address
	}
	if addr == "" {
		return nil, fmt.Errorf("no server address; use --server or --remote")
	}
	client := connection.NewHTTPClient(addr, cfg.Storage.Remote.Token)
	if cfg.Storage.Remote.CAFile != "" {
		tlsCfg, err := tlsroots.ClientConfig(cfg.Storage.Remote.CAFile)
		if err != nil {
			return nil, err
		}
		client.SetTLSConfig(tlsCfg)
	}
	return client, nil
}

func serverStatus(c *cli.Context) error {
	client, err := httpClient(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Context, requestTimeout)
	defer cancel()

	var status handler.StatusResponse
	if err := client.GetJSON(ctx, "/status", &status); err != nil {
		return fmt.Errorf("status: %w", err)
	}
	if !isTable(c) {
		return render(c, status)
	}

	w := stdout(c)
	fmt.Fprintf(w, "Server:   %s\n", client.BaseURL())
	fmt.Fprintf(w, "Version:  %s\n", status.Build.Version)
	fmt.Fprintf(w, "Backend:  %s\n", status.Backend)
	fmt.Fprintf(w, "Keys:     %d\n", status.Keys)
	fmt.Fprintf(w, "Uptime:   %s\n", status.Uptime)
	return nil
}

// healthRow is one row of the health table.
type healthRow struct {
	Check  string `json:"check"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func serverHealth(c *cli.Context) error {
	client, err := httpClient(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Context, requestTimeout)
	defer cancel()

	rows := make([]healthRow, 0, 2)
	healthy := true
	for _, check := range []string{"healthz", "readyz"} {
		var result struct {
			Status string `json:"status"`
		}
		row := healthRow{Check: check}
		if err := client.GetJSON(ctx, "/"+check, &result); err != nil {
			row.Status = "fail"
			row.Error = err.Error()
			healthy = false
		} else {
			row.Status = result.Status
		}
		rows = append(rows, row)
	}

	if err := render(c, rows); err != nil {
		return err
	}
	if !healthy {
		return cli.Exit("server unhealthy", 1)
	}
	return nil
}

func serverVersion(c *cli.Context) error {
	client, err := httpClient(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Context, requestTimeout)
	defer cancel()

	var info buildinfo.Info
	if err := client.GetJSON(ctx, "/version", &info); err != nil {
		return fmt.Errorf("version: %w", err)
	}
	return render(c, info)
}
