// Package config defines the configuration of mirrorsync-server.
//
// The server exposes one storage backend over RPC so that processes which
// cannot share the backend directly (Badger holds an exclusive lock, remote
// hosts have no shared disk) mirror the same namespace.
package config
