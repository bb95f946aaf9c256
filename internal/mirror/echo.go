package mirror

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spaolacci/murmur3"
)

// maxEchoesPerKey bounds expectations kept for one key.
const maxEchoesPerKey = 8

type echo struct {
	sum     uint64
	removed bool
	at      time.Time
}

// echoSet remembers fingerprints of this mirror's own writes so that the
// backend reporting them back is not mistaken for another context's change.
// Each expectation matches one event and expires after ttl.
type echoSet struct {
	clock   clockwork.Clock
	ttl     time.Duration
	enabled bool

	mu   sync.Mutex
	keys map[string][]echo
}

func newEchoSet(clock clockwork.Clock, ttl time.Duration, enabled bool) *echoSet {
	return &echoSet{clock: clock, ttl: ttl, enabled: enabled, keys: make(map[string][]echo)}
}

func fingerprint(value string) uint64 {
	return murmur3.Sum64([]byte(value))
}

// expectSet records a write of value under physical key.
func (e *echoSet) expectSet(key, value string) {
	e.add(key, echo{sum: fingerprint(value)})
}

// expectRemove records a removal of physical key.
func (e *echoSet) expectRemove(key string) {
	e.add(key, echo{removed: true})
}

// forget drops an expectation after the write it was recorded for failed.
func (e *echoSet) forget(key string) {
	if !e.enabled {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if q := e.keys[key]; len(q) > 0 {
		e.set(key, q[:len(q)-1])
	}
}

func (e *echoSet) add(key string, ev echo) {
	if !e.enabled {
		return
	}
	ev.at = e.clock.Now()

	e.mu.Lock()
	defer e.mu.Unlock()
	q := append(e.live(key), ev)
	if len(q) > maxEchoesPerKey {
		q = q[len(q)-maxEchoesPerKey:]
	}
	e.keys[key] = q
}

// consume reports whether an event matches a pending expectation and, if
// so, removes that expectation.
func (e *echoSet) consume(key, newValue string, removed bool) bool {
	if !e.enabled {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	q := e.live(key)
	sum := fingerprint(newValue)
	for i, ev := range q {
		if ev.removed == removed && (removed || ev.sum == sum) {
			e.set(key, append(q[:i:i], q[i+1:]...))
			return true
		}
	}
	e.set(key, q)
	return false
}

// live returns the unexpired expectations for key. Caller holds mu.
func (e *echoSet) live(key string) []echo {
	q := e.keys[key]
	now := e.clock.Now()
	i := 0
	for i < len(q) && now.Sub(q[i].at) > e.ttl {
		i++
	}
	return q[i:]
}

func (e *echoSet) set(key string, q []echo) {
	if len(q) == 0 {
		delete(e.keys, key)
		return
	}
	e.keys[key] = q
}

// pending returns the number of outstanding expectations.
func (e *echoSet) pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, q := range e.keys {
		n += len(q)
	}
	return n
}
