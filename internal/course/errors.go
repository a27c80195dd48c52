package course

import "errors"

var (
	ErrAggregateNotFound  = errors.New("course: not found")
	ErrEntityNotFound     = errors.New("course: nested entity not found")
	ErrNotEnrolled        = errors.New("course: not enrolled")
	ErrInvalidInput       = errors.New("course: invalid input")
	ErrIdentityConflict   = errors.New("course: duplicate identity")
	ErrStoreUnavailable   = errors.New("course: store unavailable")
	ErrNotificationFailed = errors.New("course: notification failed")
)

// Nested entity kinds reported by EntityNotFoundError.
const (
	KindContent  = "content"
	KindQuestion = "question"
	KindReview   = "review"
)

// EntityNotFoundError names the nested entity that could not be resolved
// inside an existing course.
type EntityNotFoundError struct {
	Kind string
	ID   string
}

func (e *EntityNotFoundError) Error() string { return "invalid " + e.Kind + " id" }

func (e *EntityNotFoundError) Is(target error) bool { return target == ErrEntityNotFound }
