package access

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrNotFound signals a missing technician account.
	ErrNotFound = errors.New("access: account not found")
	// ErrUsernameTaken signals a username collision between technicians.
	ErrUsernameTaken = errors.New("access: username already taken")
	// ErrInvalidInput signals a staff account missing required fields
	// or using a reserved username.
	ErrInvalidInput = errors.New("access: invalid staff account")
)

// StaffRepository handles data access for technician accounts.
type StaffRepository interface {
	List(ctx context.Context) ([]Technician, error)
	FindByUsername(ctx context.Context, username string) (Technician, error)
	Save(ctx context.Context, tech Technician) (Technician, error)
	Delete(ctx context.Context, id int64) error
}

// CredentialStore holds the mutable admin credential hash.
type CredentialStore interface {
	AdminHash(ctx context.Context) (string, error)
	SetAdminHash(ctx context.Context, hash string) error
}

// MemoryStaffRepository keeps technician accounts in process memory.
type MemoryStaffRepository struct {
	mu     sync.RWMutex
	techs  map[int64]Technician
	nextID int64
}

func NewMemoryStaffRepository() *MemoryStaffRepository {
	return &MemoryStaffRepository{techs: map[int64]Technician{}, nextID: 1}
}

func (r *MemoryStaffRepository) List(_ context.Context) ([]Technician, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]Technician, 0, len(r.techs))
	for _, t := range r.techs {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all, nil
}

func (r *MemoryStaffRepository) FindByUsername(_ context.Context, username string) (Technician, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.techs {
		if t.Username == username {
			return t, nil
		}
	}
	return Technician{}, ErrNotFound
}

func (r *MemoryStaffRepository) Save(_ context.Context, tech Technician) (Technician, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, other := range r.techs {
		if other.ID != tech.ID && strings.EqualFold(other.Username, tech.Username) {
			return Technician{}, ErrUsernameTaken
		}
	}

	if tech.ID == 0 {
		tech.ID = r.nextID
		r.nextID++
	} else if _, ok := r.techs[tech.ID]; !ok {
		return Technician{}, ErrNotFound
	}
	r.techs[tech.ID] = tech
	return tech, nil
}

func (r *MemoryStaffRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.techs[id]; !ok {
		return ErrNotFound
	}
	delete(r.techs, id)
	return nil
}

// MemoryCredentialStore holds the admin hash in memory, seeded at
// construction.
type MemoryCredentialStore struct {
	mu   sync.RWMutex
	hash string
}

func NewMemoryCredentialStore(seedHash string) *MemoryCredentialStore {
	return &MemoryCredentialStore{hash: seedHash}
}

func (s *MemoryCredentialStore) AdminHash(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.hash == "" {
		return "", ErrNotFound
	}
	return s.hash, nil
}

func (s *MemoryCredentialStore) SetAdminHash(_ context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hash = hash
	return nil
}
