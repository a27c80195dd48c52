// Package session keeps the authoritative principal snapshot for each signed-in
// user in the key-value store. Deleting the entry revokes every outstanding
// token for that user.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"coursehub.org/internal/auth"
	"coursehub.org/internal/kv"
)

const keyPrefix = "session:"

var _ auth.SessionStore = (*Store)(nil)

// Store maps principal ids to JSON principal snapshots.
type Store struct {
	kv  kv.Store
	ttl time.Duration
}

// New returns a session store whose entries live for ttl.
func New(store kv.Store, ttl time.Duration) *Store {
	return &Store{kv: store, ttl: ttl}
}

// Key returns the storage key for principalID.
func Key(principalID string) string {
	return keyPrefix + principalID
}

func (s *Store) Get(ctx context.Context, principalID string) (auth.Principal, error) {
	if strings.TrimSpace(principalID) == "" {
		return auth.Principal{}, auth.ErrSessionNotFound
	}
	raw, err := s.kv.Get(ctx, Key(principalID))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return auth.Principal{}, auth.ErrSessionNotFound
		}
		return auth.Principal{}, err
	}
	var p auth.Principal
	if err := json.Unmarshal(raw, &p); err != nil {
		return auth.Principal{}, fmt.Errorf("session: decode %s: %w", principalID, err)
	}
	if p.ID != principalID {
		return auth.Principal{}, fmt.Errorf("session: entry for %s holds principal %q", principalID, p.ID)
	}
	return p, nil
}

func (s *Store) Put(ctx context.Context, p auth.Principal) error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("session: %w: principal id is required", auth.ErrInvalidInput)
	}
	if p.Courses == nil {
		p.Courses = []string{}
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	return s.kv.Set(ctx, Key(p.ID), raw, s.ttl)
}

func (s *Store) Delete(ctx context.Context, principalID string) error {
	return s.kv.Delete(ctx, Key(principalID))
}
