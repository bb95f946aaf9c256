// Package memory provides the process-local storage backend.
//
// A Store lives as long as the process and can be shared by any number of
// mirrors. It is the session-scoped flavor: state survives mirror
// reconstruction but not a restart. Every mutation is broadcast to
// watchers, including mutations made through the watcher's own mirror.
package memory
