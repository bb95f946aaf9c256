// Package rpcserver exposes a storage.Backend over Connect RPC.
//
// mirrorsync-server uses it to share one backend (typically Badger, which
// cannot be opened by two processes) with any number of remote clients.
// Changes observed by the backend are relayed to every Watch stream.
package rpcserver
