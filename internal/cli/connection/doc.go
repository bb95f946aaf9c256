// Package connection holds what a mirrorsync-cli invocation talks to: the
// registry and provider it reads and writes through, and an HTTP client
// for the operational endpoints of a mirrorsync-server.
//
// The registry is opened on first use and closed, flushing any pending
// writeback, when the command or shell ends.
package connection
