package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/krs-admin-api/internal/models"
	"github.com/noah-isme/krs-admin-api/internal/query"
)

// pickerLimit caps the search-only picker listings.
const pickerLimit = 200

// StudentRepository manages read access to student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns up to pickerLimit students matching the search term,
// ordered by NIM.
func (r *StudentRepository) List(ctx context.Context, search string) ([]models.StudentRow, error) {
	b := query.NewBuilder()
	query.ApplySearch(b, search, []string{"nim", "name", "email"})

	q := fmt.Sprintf("SELECT id, nim, name, email FROM students%s ORDER BY nim ASC LIMIT %d",
		b.Clause(), pickerLimit)

	rows := []models.StudentRow{}
	if err := r.db.SelectContext(ctx, &rows, q, b.Args()...); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return rows, nil
}

// ExistsByID reports whether a student row exists.
func (r *StudentRepository) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var one int
	if err := r.db.GetContext(ctx, &one, `SELECT 1 FROM students WHERE id = $1 LIMIT 1`, id); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student: %w", err)
	}
	return true, nil
}
