package auth

import "context"

// UserStore persists accounts. Implementations return ErrNotFound for unknown
// users and ErrAlreadyExists when an email is taken.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	AddCourse(ctx context.Context, userID, courseID string) (*User, error)
}

// SessionStore holds the authoritative principal snapshot per principal id.
// Get returns ErrSessionNotFound when no session exists; any other error is
// treated as the store being unavailable.
type SessionStore interface {
	Get(ctx context.Context, principalID string) (Principal, error)
	Put(ctx context.Context, p Principal) error
	Delete(ctx context.Context, principalID string) error
}
