// Package domain defines the core domain types for mirrorsync.
//
// It has no IO dependencies. This package contains:
//
//   - Flavor: the storage flavors a mirror can be bound to
//   - Errors: domain error codes shared by every layer
package domain
