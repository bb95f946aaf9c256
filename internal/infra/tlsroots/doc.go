// Package tlsroots provides the TLS material of mirrorsync-server and of
// its remote clients.
//
//   - roots.go: trust pools built from PEM files and client/server configs
//   - reloader.go: serving certificate reloaded when its files change
//
// The server keeps serving the previous certificate when a reload fails, so
// a half-written key pair never takes the listener down.
package tlsroots
