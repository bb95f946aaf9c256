// Package mirror implements the sync engine: an in-memory record kept in
// agreement with a storage backend.
//
// A Mirror holds logical keys and arbitrary values. Host mutations only
// touch memory and arm a debounced writeback (Scheduler). The writeback
// serializes the record, compares it with the snapshot taken at the last
// point of agreement, and if anything differs writes every key and removes
// the keys that disappeared. Changes made elsewhere reach the Mirror through
// a Notifier attached to the backend's change feed.
//
// Keys starting with ControlPrefix are private to the host and never stored.
// A nil value means "undefined": it is not written, so its stored entry is
// removed.
//
// Backend failures never reach the host. They are logged, rate limited, and
// counted in Stats.
package mirror
