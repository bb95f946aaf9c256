// Package main provides the entry point for mirrorsync-server.
//
// The server exposes one storage backend (badger, file or memory) over the
// storage RPC service, so mirrors in other processes can share it as their
// extensionStorage flavor and receive each other's changes.
//
// Usage:
//
//	mirrorsync-server [flags]
//	mirrorsync-server -config /etc/mirrorsync/server.yaml
//
// Settings come from the file and MIRRORSYNC_* environment variables. When
// a file is given it is watched; a change re-reads it and applies the new
// log level without a restart.
package main
