package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"coursehub.org/internal/course"
)

var _ course.Repository = (*CourseRepository)(nil)

// CourseRepository keeps each course aggregate as one JSONB document.
type CourseRepository struct {
	db *sql.DB
}

func NewCourseRepository(db *sql.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

func (r *CourseRepository) FindByID(ctx context.Context, id string) (*course.Course, error) {
	var doc []byte
	err := r.db.QueryRowContext(ctx, `select document from courses where id=$1`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, course.ErrAggregateNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeCourse(id, doc)
}

func (r *CourseRepository) Find(ctx context.Context) ([]*course.Course, error) {
	rows, err := r.db.QueryContext(ctx, `select id, document from courses order by created_at asc, id asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []*course.Course{}
	for rows.Next() {
		var (
			id  string
			doc []byte
		)
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, err
		}
		c, err := decodeCourse(id, doc)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r *CourseRepository) Create(ctx context.Context, c *course.Course) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode course %s: %w", c.ID, err)
	}
	res, err := r.db.ExecContext(ctx, `
		insert into courses(id, document, created_at, updated_at)
		values ($1, $2, $3, $4)
		on conflict (id) do nothing
	`, c.ID, doc, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.ErrIdentityConflict
	}
	return nil
}

// Save overwrites the stored document.
func (r *CourseRepository) Save(ctx context.Context, c *course.Course) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode course %s: %w", c.ID, err)
	}
	res, err := r.db.ExecContext(ctx, `
		update courses set document=$2, updated_at=$3 where id=$1
	`, c.ID, doc, c.UpdatedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return course.ErrAggregateNotFound
	}
	return nil
}

func decodeCourse(id string, doc []byte) (*course.Course, error) {
	var c course.Course
	if err := json.Unmarshal(doc, &c); err != nil {
		return nil, fmt.Errorf("decode course %s: %w", id, err)
	}
	if c.ID == "" {
		c.ID = id
	}
	return &c, nil
}
