package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/krs-admin-api/internal/models"
	"github.com/noah-isme/krs-admin-api/internal/query"
)

// CourseRepository manages read access to course records.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns up to pickerLimit courses matching the search term,
// ordered by code.
func (r *CourseRepository) List(ctx context.Context, search string) ([]models.CourseRow, error) {
	b := query.NewBuilder()
	query.ApplySearch(b, search, []string{"code", "name"})

	q := fmt.Sprintf("SELECT id, code, name, credits FROM courses%s ORDER BY code ASC LIMIT %d",
		b.Clause(), pickerLimit)

	rows := []models.CourseRow{}
	if err := r.db.SelectContext(ctx, &rows, q, b.Args()...); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return rows, nil
}

// ExistsByID reports whether a course row exists.
func (r *CourseRepository) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var one int
	if err := r.db.GetContext(ctx, &one, `SELECT 1 FROM courses WHERE id = $1 LIMIT 1`, id); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check course: %w", err)
	}
	return true, nil
}
