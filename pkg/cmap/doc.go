// Package cmap provides a sharded concurrent map.
//
// Each shard has its own RWMutex so unrelated keys do not contend.
// Iteration takes shard locks one at a time and therefore is not a
// consistent snapshot of the whole map.
//
//	m := cmap.New[string, string]()
//	old, existed := m.Swap("key", "value")
package cmap
