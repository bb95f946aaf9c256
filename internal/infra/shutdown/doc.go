// Package shutdown coordinates graceful termination.
//
// A Handler collects hooks and runs them once, in reverse registration
// order, either when the process receives SIGINT or SIGTERM (Wait) or when
// the host triggers it directly (Shutdown). Mirrors register a hook that
// flushes their pending writeback, so unsaved changes reach storage before
// the process exits.
//
// Usage:
//
//	h := shutdown.NewHandler(10 * time.Second)
//	h.OnShutdown(func(ctx context.Context) error { return srv.Shutdown(ctx) })
//	if err := h.Wait(ctx); err != nil { ... }
package shutdown
