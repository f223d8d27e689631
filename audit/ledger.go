package audit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Ledger is the append-only event log written by every mutating
// operation. Entries are never updated or deleted; List returns them
// newest first.
type Ledger interface {
	Append(ctx context.Context, action, details, actor string) error
	List(ctx context.Context) ([]Entry, error)
}

// MemoryLedger keeps the ledger in process memory. It backs tests and
// DB-disabled deployments.
type MemoryLedger struct {
	mu      sync.Mutex
	entries []Entry
	nextID  int64
	now     func() time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{nextID: 1, now: time.Now}
}

// WithClock overrides the timestamp source for tests.
func (l *MemoryLedger) WithClock(now func() time.Time) *MemoryLedger {
	l.now = now
	return l
}

func (l *MemoryLedger) Append(_ context.Context, action, details, actor string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, Entry{
		ID:        l.nextID,
		Action:    action,
		Details:   details,
		Actor:     actor,
		Timestamp: l.now().UTC(),
	})
	l.nextID++
	return nil
}

func (l *MemoryLedger) List(_ context.Context) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}
