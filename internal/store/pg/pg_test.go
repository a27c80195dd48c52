package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"coursehub.org/internal/auth"
	"coursehub.org/internal/course"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

func TestCourseFindByID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCourseRepository(db)

	doc, _ := json.Marshal(course.Course{ID: "c1", Name: "Go", Reviews: []course.Review{{ID: "r1", Rating: 5}}, AverageRating: 5})
	mock.ExpectQuery("select document from courses where id").WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"document"}).AddRow(doc))
	mock.ExpectQuery("select document from courses where id").WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	c, err := repo.FindByID(context.Background(), "c1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if c.Name != "Go" || len(c.Reviews) != 1 || c.AverageRating != 5 {
		t.Fatalf("unexpected course %+v", c)
	}
	if _, err := repo.FindByID(context.Background(), "missing"); !errors.Is(err, course.ErrAggregateNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCourseFindKeepsOrder(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCourseRepository(db)

	a, _ := json.Marshal(course.Course{ID: "a", Name: "A"})
	b, _ := json.Marshal(course.Course{Name: "B"})
	mock.ExpectQuery("select id, document from courses order by created_at").
		WillReturnRows(sqlmock.NewRows([]string{"id", "document"}).AddRow("a", a).AddRow("b", b))

	list, err := repo.Find(context.Background())
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(list) != 2 || list[0].ID != "a" || list[1].ID != "b" {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestCourseSaveOverwritesDocument(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCourseRepository(db)
	c := &course.Course{ID: "c1", Name: "Go", UpdatedAt: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)}

	mock.ExpectExec("update courses set document").WithArgs("c1", sqlmock.AnyArg(), c.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("update courses set document").WithArgs("gone", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Save(context.Background(), c); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := repo.Save(context.Background(), &course.Course{ID: "gone"}); !errors.Is(err, course.ErrAggregateNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCourseCreateConflict(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCourseRepository(db)

	mock.ExpectExec("insert into courses").WithArgs("c1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into courses").WithArgs("c1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Create(context.Background(), &course.Course{ID: "c1"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(context.Background(), &course.Course{ID: "c1"}); !errors.Is(err, course.ErrIdentityConflict) {
		t.Fatalf("expected identity conflict, got %v", err)
	}
}

func userRow(u auth.User, courses string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "email", "password_hash", "role", "courses", "created_at", "updated_at"}).
		AddRow(u.ID, u.Name, u.Email, u.PasswordHash, u.Role, []byte(courses), u.CreatedAt, u.UpdatedAt)
}

func TestUserCreate(t *testing.T) {
	db, mock := newMock(t)
	store := NewUserStore(db)

	mock.ExpectExec("insert into users").
		WithArgs(sqlmock.AnyArg(), "Ada", "ada@example.com", "hash", auth.RoleUser, []byte("[]"), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into users").
		WillReturnError(&pgconn.PgError{Code: uniqueViolation})

	u := &auth.User{Name: "Ada", Email: " Ada@Example.com ", PasswordHash: "hash"}
	if err := store.Create(context.Background(), u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.ID == "" || u.Role != auth.RoleUser {
		t.Fatalf("defaults not applied: %+v", u)
	}
	dup := &auth.User{Name: "Ada", Email: "ada@example.com", PasswordHash: "hash"}
	if err := store.Create(context.Background(), dup); !errors.Is(err, auth.ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}
}

func TestUserLookup(t *testing.T) {
	db, mock := newMock(t)
	store := NewUserStore(db)
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	row := auth.User{ID: "u1", Name: "Ada", Email: "ada@example.com", PasswordHash: "hash", Role: "Admin", CreatedAt: now, UpdatedAt: now}

	mock.ExpectQuery("from users where email").
		WithArgs("ada@example.com").WillReturnRows(userRow(row, `["c1"]`))
	mock.ExpectQuery("from users where id").WithArgs("nope").WillReturnError(sql.ErrNoRows)

	u, err := store.FindByEmail(context.Background(), "ADA@example.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if u.Role != auth.RoleAdmin || len(u.Courses) != 1 || u.Courses[0] != "c1" {
		t.Fatalf("unexpected user %+v", u)
	}
	if _, err := store.Find(context.Background(), "nope"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUserAddCourse(t *testing.T) {
	db, mock := newMock(t)
	store := NewUserStore(db)
	row := auth.User{ID: "u1", Name: "Ada", Email: "ada@example.com", PasswordHash: "hash", Role: auth.RoleUser}

	mock.ExpectQuery("update users").WithArgs("u1", "c2", sqlmock.AnyArg()).WillReturnRows(userRow(row, `["c1","c2"]`))
	mock.ExpectQuery("update users").WithArgs("nope", "c2", sqlmock.AnyArg()).WillReturnError(sql.ErrNoRows)

	u, err := store.AddCourse(context.Background(), "u1", "c2")
	if err != nil {
		t.Fatalf("AddCourse: %v", err)
	}
	if !u.Principal().IsEnrolled("c2") {
		t.Fatalf("expected enrollment, got %+v", u.Courses)
	}
	if _, err := store.AddCourse(context.Background(), "nope", "c2"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
