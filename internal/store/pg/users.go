package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"coursehub.org/internal/auth"
	"coursehub.org/internal/ids"
)

const uniqueViolation = "23505"

var _ auth.UserStore = (*UserStore)(nil)

// UserStore implements auth.UserStore on the users table.
type UserStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db, now: time.Now}
}

func (s *UserStore) Create(ctx context.Context, u *auth.User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	u.Email = auth.NormalizeEmail(u.Email)
	if u.Role == "" {
		u.Role = auth.RoleUser
	}
	now := s.now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	courses, err := encodeCourses(u.Courses)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into users(id, name, email, password_hash, role, courses, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
	`, u.ID, u.Name, u.Email, u.PasswordHash, u.Role, courses, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return auth.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *UserStore) Find(ctx context.Context, id string) (*auth.User, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `
		select id, name, email, password_hash, role, courses, created_at, updated_at
		from users where id=$1`, id))
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `
		select id, name, email, password_hash, role, courses, created_at, updated_at
		from users where email=$1`, auth.NormalizeEmail(email)))
}

// AddCourse appends courseID to the enrollment list unless already present.
func (s *UserStore) AddCourse(ctx context.Context, userID, courseID string) (*auth.User, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `
		update users
		set courses = case when courses ? $2 then courses else courses || jsonb_build_array($2::text) end,
		    updated_at = $3
		where id=$1
		returning id, name, email, password_hash, role, courses, created_at, updated_at`,
		userID, courseID, s.now().UTC()))
}

func (s *UserStore) scanOne(row *sql.Row) (*auth.User, error) {
	var (
		u       auth.User
		courses []byte
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &courses, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(courses) > 0 {
		if err := json.Unmarshal(courses, &u.Courses); err != nil {
			return nil, fmt.Errorf("decode courses for %s: %w", u.ID, err)
		}
	}
	u.Role = strings.ToLower(u.Role)
	return &u, nil
}

func encodeCourses(courses []string) ([]byte, error) {
	if courses == nil {
		courses = []string{}
	}
	return json.Marshal(courses)
}
