package command

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/mirrorsync/internal/infra/shutdown"
	"github.com/yndnr/mirrorsync/internal/mirror"
)

// WatchCommand prints changes made by other contexts until interrupted.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Print changes made by other processes",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "for",
				Usage: "Stop after this long (0 waits for Ctrl+C)",
			},
		},
		Action: func(c *cli.Context) error {
			mgr, err := manager(c)
			if err != nil {
				return err
			}
			// The callback is bound when the registry opens.
			if mgr.IsOpen() {
				if err := mgr.Close(c.Context); err != nil {
					return err
				}
			}

			var (
				mir atomic.Pointer[mirror.Mirror]
				mu  sync.Mutex
				out = stdout(c)
			)
			mgr.OnChange(func(provider, key string, removed bool) {
				mu.Lock()
				defer mu.Unlock()
				ts := time.Now().Format(time.TimeOnly)
				if removed {
					fmt.Fprintf(out, "%s %s removed %s\n", ts, provider, key)
					return
				}
				var v any
				if m := mir.Load(); m != nil {
					v, _ = m.Get(key)
				}
				fmt.Fprintf(out, "%s %s set %s = %s\n", ts, provider, key, compact(v))
			})
			defer mgr.OnChange(nil)

			m, err := mgr.Mirror(c.Context)
			if err != nil {
				return err
			}
			mir.Store(m)
			fmt.Fprintf(out, "watching %s (%d keys), Ctrl+C to stop\n", mgr.ProviderName(), m.Len())

			ctx := c.Context
			if d := c.Duration("for"); d > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}

			reg, err := mgr.Registry()
			if err != nil {
				return err
			}
			// Hooks run last-registered first: the registry flushes and
			// closes, then the manager drops it so the shell can reopen.
			h := shutdown.NewHandler(closeTimeout)
			h.OnShutdown(mgr.Close)
			reg.BindShutdown(h)
			return h.Wait(ctx)
		},
	}
}

func compact(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
