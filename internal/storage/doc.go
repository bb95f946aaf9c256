// Package storage provides the storage backends for mirrorsync.
//
// A Backend is a flat key-value store addressed by physical keys
// (namespace prefix plus logical key). The engine only ever talks to
// backends through this package's contract.
//
// Backends:
//
//   - BadgerBackend: durable embedded store (dgraph-io/badger)
//   - NutsBackend: durable embedded store (xujiajun/nutsdb), cached in memory
//   - filestore: one file per key in a directory shared between processes
//   - memory: process-local store shared between mirrors
//   - remote: client for a mirrorsync-server over connect RPC
//   - Noop: substitute used when no backend is usable
//
// Probe and Select decide at startup which backend is usable, degrading to
// Noop with a single warning instead of failing the host.
package storage
