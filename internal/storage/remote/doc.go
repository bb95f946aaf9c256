// Package remote provides the asynchronous storage backend: a Connect client
// for a mirrorsync-server.
//
// Every call crosses the network, so the engine only uses this backend from
// its writeback and load paths, never from host mutations. Watch keeps a
// server stream open and reconnects after failures until stopped.
package remote
