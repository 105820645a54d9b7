package mlts

import (
	"sync"
	"time"
)

// PeerID identifies a peer (validator hotkey, or equivalent opaque
// identifier) for logging and session lookup. Never logged in full;
// see elide.
type PeerID string

// sessionEntry is one exchanged symmetric key, scoped to a single
// session UUID chosen by the peer at exchange time.
type sessionEntry struct {
	key       fernetKey
	expiresAt time.Time
}

// cacheKey addresses one entry: a peer may hold multiple concurrent
// sessions, one per UUID.
type cacheKey struct {
	peer PeerID
	uuid string
}

// sessionCache holds exchanged symmetric keys, keyed by (peer, uuid),
// mirroring the nested {validator_hotkey: {uuid: (key, expiry)}}
// structure of the reference implementation.
type sessionCache struct {
	mu      sync.Mutex
	entries map[cacheKey]sessionEntry
}

func newSessionCache() *sessionCache {
	return &sessionCache{entries: make(map[cacheKey]sessionEntry)}
}

func (c *sessionCache) put(peer PeerID, uuid string, key fernetKey, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{peer, uuid}] = sessionEntry{key: key, expiresAt: expiresAt}
}

// get returns the session's key and whether it is still within its
// TTL. A present-but-expired entry is reported as expired, not
// unknown, so callers can distinguish SessionUnknown from
// SessionExpired.
func (c *sessionCache) get(peer PeerID, uuid string, now time.Time) (key fernetKey, present bool, expired bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[cacheKey{peer, uuid}]
	if !ok {
		return fernetKey{}, false, false
	}
	return e.key, true, now.After(e.expiresAt)
}

// sweep removes every entry whose TTL has elapsed as of now, returning
// the count removed.
func (c *sessionCache) sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}
