package auth

import (
	"slices"
	"strings"
	"time"
)

// Built-in roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Principal is the authenticated identity attached to a request. A principal is
// an immutable snapshot: it is built at login, cached in the session store and
// replaced wholesale on refresh or enrollment.
type Principal struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Email   string   `json:"email"`
	Role    string   `json:"role"`
	Courses []string `json:"courses"`
}

// IsEnrolled reports whether courseID is in the principal's enrollment list.
func (p Principal) IsEnrolled(courseID string) bool {
	return courseID != "" && slices.Contains(p.Courses, courseID)
}

// HasRole reports whether the principal's role is one of roles.
func (p Principal) HasRole(roles ...string) bool {
	role := normalizeRole(p.Role)
	for _, r := range roles {
		if normalizeRole(r) == role {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no memory with p.
func (p Principal) Clone() Principal {
	p.Courses = slices.Clone(p.Courses)
	return p
}

// User is a stored account.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	Courses      []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal builds the session snapshot for u.
func (u User) Principal() Principal {
	role := normalizeRole(u.Role)
	if role == "" {
		role = RoleUser
	}
	return Principal{
		ID:      u.ID,
		Name:    u.Name,
		Email:   u.Email,
		Role:    role,
		Courses: slices.Clone(u.Courses),
	}
}

func normalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
