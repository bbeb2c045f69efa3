package binding

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/pmylund/go-cache"
)

// ReplayGuard remembers the wrapped keys of envelopes that have been opened recently. Every Seal generates a fresh
// AES key, and PKCS#1 v1.5 encryption is randomised, so an honest peer never sends the same wrapped key twice.
type ReplayGuard struct {
	seen   *cache.Cache
	window time.Duration
}

// NewReplayGuard creates a ReplayGuard which remembers wrapped keys for window.
func NewReplayGuard(window time.Duration) *ReplayGuard {
	return &ReplayGuard{
		seen:   cache.New(window, 2*window),
		window: window,
	}
}

// Window returns how long wrapped keys are remembered for.
func (g *ReplayGuard) Window() time.Duration {
	return g.window
}

// Check records wrappedKey and reports whether it is the first time it has been seen within the window. It is safe
// for concurrent use; of two concurrent calls with the same key exactly one returns true.
func (g *ReplayGuard) Check(wrappedKey string) bool {
	sum := sha256.Sum256([]byte(wrappedKey))
	return g.seen.Add(hex.EncodeToString(sum[:]), struct{}{}, cache.DefaultExpiration) == nil
}
