// Package registry exposes named storage providers to the host.
//
// A Registry holds one Provider per backend flavor: localStorage (durable),
// sessionStorage (process-local) and, when a server address is configured,
// extensionStorage (remote). Each Provider owns a codec, probes its backend
// on first use and hands out a single Mirror that is loaded before it is
// returned and attached to the backend's change feed.
package registry
