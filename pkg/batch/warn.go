package batch

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// warnLimiter rate-limits repeated warnings by key (e.g. "queue-full",
// "dispatch-error:otlp") so a persistent condition logs once per window
// instead of once per dropped record. The LRU bound keeps memory flat
// even if callers pass many distinct keys over a long-running process.
type warnLimiter struct {
	mu     sync.Mutex
	seen   *lru.Cache[string, time.Time]
	window time.Duration
}

func newWarnLimiter(window time.Duration) *warnLimiter {
	cache, _ := lru.New[string, time.Time](256)
	return &warnLimiter{seen: cache, window: window}
}

// allow reports whether a warning for key should be emitted now, and
// records that it was.
func (w *warnLimiter) allow(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	if last, ok := w.seen.Get(key); ok && now.Sub(last) < w.window {
		return false
	}
	w.seen.Add(key, now)
	return true
}
