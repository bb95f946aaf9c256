// Package config defines the mirrorsync-cli configuration.
//
// The CLI reads ~/.mirrorsync/cli.yaml, then MIRRORSYNC_CLI_* environment
// variables, then the flags given on the command line. The storage, sync
// and codec sections have the same shape as the server's library settings,
// so one file can describe the namespace both sides use.
package config
