// Package token generates and checks the bearer tokens that guard
// mirrorsync-server.
//
// Generated tokens carry the prefix "mst_" followed by 43 characters of
// Base64 RawURL encoded random bytes. Comparison goes through SHA-256
// digests so it takes the same time whatever the length of the input.
package token
