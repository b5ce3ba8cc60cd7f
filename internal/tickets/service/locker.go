package tickets

import (
	"context"
	"sync"

	"onfa-ticketing/internal/models"
)

// LocalLocker is the single instance fallback used when redis is not configured.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[models.Tier]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[models.Tier]chan struct{})}
}

func (l *LocalLocker) slot(tier models.Tier) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[tier]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[tier] = ch
	}
	return ch
}

func (l *LocalLocker) Acquire(ctx context.Context, tier models.Tier) (func(), error) {
	ch := l.slot(tier)
	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
