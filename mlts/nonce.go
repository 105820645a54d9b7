package mlts

import (
	"sync"
	"time"
)

// nonceWindow remembers recently-seen handshake nonces to reject
// replayed key exchanges; entries older than the window are swept periodically
// so memory stays bounded.
type nonceWindow struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

func newNonceWindow() *nonceWindow {
	return &nonceWindow{seen: make(map[string]time.Time)}
}

// accept records nonce if it has not been seen within window of now,
// reporting whether it was accepted (false means replay).
func (w *nonceWindow) accept(nonce string, window time.Duration, now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if last, ok := w.seen[nonce]; ok && now.Sub(last) <= window {
		return false
	}
	w.seen[nonce] = now
	return true
}

// sweep drops nonces older than window, returning the count removed.
func (w *nonceWindow) sweep(window time.Duration, now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for nonce, seenAt := range w.seen {
		if now.Sub(seenAt) > window {
			delete(w.seen, nonce)
			n++
		}
	}
	return n
}
