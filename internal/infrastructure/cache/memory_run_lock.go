package cache

import (
	"context"
	"sync"
	"time"

	"github.com/erp/shipcheck/internal/domain/reconciliation"
)

// MemoryRunLock implements reconciliation.RunLock for a single process
type MemoryRunLock struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

// NewMemoryRunLock creates an in-process run lock
func NewMemoryRunLock() *MemoryRunLock {
	return &MemoryRunLock{
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

// TryAcquire takes the lock unless an unexpired holder exists
func (l *MemoryRunLock) TryAcquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if expiresAt, held := l.expires[key]; held && now.Before(expiresAt) {
		return false, nil
	}
	l.expires[key] = now.Add(ttl)
	return true, nil
}

// Release drops the lock
func (l *MemoryRunLock) Release(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.expires, key)
	l.mu.Unlock()
	return nil
}

var _ reconciliation.RunLock = (*MemoryRunLock)(nil)
