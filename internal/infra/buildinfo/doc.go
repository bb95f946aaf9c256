// Package buildinfo exposes the mirrorsync build identity.
//
// Version, Commit and BuildTime are injected with ldflags:
//
//	go build -ldflags "-X github.com/yndnr/mirrorsync/internal/infra/buildinfo.Version=v0.3.0"
//
// When they are not injected, Get falls back to the module and VCS data the
// Go toolchain embeds in the binary.
package buildinfo
