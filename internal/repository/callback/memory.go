package callback

import (
	"context"
	"sync"
	"time"
)

type memoryLedger struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	ttl    time.Duration
	now    func() time.Time
	lastGC time.Time
}

// NewMemory is a single-process Ledger. A non-positive ttl keeps entries forever.
func NewMemory(ttl time.Duration) Ledger {
	return &memoryLedger{seen: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

func (l *memoryLedger) FirstSeen(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.expire(now)
	if exp, ok := l.seen[key]; ok && (l.ttl <= 0 || now.Before(exp)) {
		return false, nil
	}
	l.seen[key] = now.Add(l.ttl)
	return true, nil
}

func (l *memoryLedger) expire(now time.Time) {
	if l.ttl <= 0 || now.Sub(l.lastGC) < l.ttl {
		return
	}
	for k, exp := range l.seen {
		if !now.Before(exp) {
			delete(l.seen, k)
		}
	}
	l.lastGC = now
}
