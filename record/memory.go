package record

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryRepository keeps contract records in process memory. It backs
// tests and DB-disabled deployments.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[int64]Record
	nextID  int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: map[int64]Record{}}
}

func (r *MemoryRepository) FindByContract(_ context.Context, contract string) (Record, error) {
	key := normalizeContract(contract)

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.records {
		if normalizeContract(rec.Contract) == key {
			return rec, nil
		}
	}
	return Record{}, ErrNotFound
}

func (r *MemoryRepository) FindByID(_ context.Context, id int64) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (r *MemoryRepository) ListAll(_ context.Context) ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		all = append(all, rec)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all, nil
}

func (r *MemoryRepository) Insert(_ context.Context, rec Record) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := normalizeContract(rec.Contract)
	for _, other := range r.records {
		if normalizeContract(other.Contract) == key {
			return Record{}, ErrContractTaken
		}
	}

	r.nextID++
	rec.ID = r.nextID
	r.records[rec.ID] = rec
	return rec, nil
}

func (r *MemoryRepository) Update(_ context.Context, rec Record) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[rec.ID]; !ok {
		return Record{}, ErrNotFound
	}
	key := normalizeContract(rec.Contract)
	for _, other := range r.records {
		if other.ID != rec.ID && normalizeContract(other.Contract) == key {
			return Record{}, ErrContractTaken
		}
	}
	r.records[rec.ID] = rec
	return rec, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		return ErrNotFound
	}
	delete(r.records, id)
	return nil
}

func normalizeContract(contract string) string {
	return strings.ToLower(strings.TrimSpace(contract))
}
