// Package main provides the entry point for mirrorsync-cli.
//
// The CLI reads and edits the state kept by mirrorsync providers:
//
//   - Key access (get, set, rm, keys, dump)
//   - Defaults and reset
//   - Watching changes made by other processes
//   - Backend probing and server status
//
// Usage:
//
//	mirrorsync-cli [global flags] command [flags] [args]
//	mirrorsync-cli --dir ./state set volume 0.8
//	mirrorsync-cli --backend remote --remote 127.0.0.1:7480 watch
//
// Running "mirrorsync-cli shell" starts an interactive session that keeps
// one mirror loaded across commands.
package main
