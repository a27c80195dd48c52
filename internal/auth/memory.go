package auth

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"coursehub.org/internal/ids"
)

var _ UserStore = (*MemoryUserStore)(nil)

// MemoryUserStore is an in-process UserStore used in development and tests.
type MemoryUserStore struct {
	mu      sync.RWMutex
	byID    map[string]*User
	byEmail map[string]string
	now     func() time.Time
}

// NewMemoryUserStore returns an empty store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:    make(map[string]*User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func (s *MemoryUserStore) Create(_ context.Context, u *User) error {
	if u == nil || strings.TrimSpace(u.Email) == "" {
		return ErrInvalidInput
	}
	email := NormalizeEmail(u.Email)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[email]; ok {
		return ErrAlreadyExists
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	if _, ok := s.byID[u.ID]; ok {
		return ErrAlreadyExists
	}
	now := s.now().UTC()
	u.Email = email
	u.CreatedAt = now
	u.UpdatedAt = now
	stored := cloneUser(u)
	s.byID[u.ID] = stored
	s.byEmail[email] = u.ID
	return nil
}

func (s *MemoryUserStore) Find(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *MemoryUserStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(s.byID[id]), nil
}

func (s *MemoryUserStore) AddCourse(_ context.Context, userID, courseID string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[userID]
	if !ok {
		return nil, ErrNotFound
	}
	if !slices.Contains(u.Courses, courseID) {
		u.Courses = append(u.Courses, courseID)
		u.UpdatedAt = s.now().UTC()
	}
	return cloneUser(u), nil
}

func cloneUser(u *User) *User {
	c := *u
	c.Courses = slices.Clone(u.Courses)
	return &c
}
