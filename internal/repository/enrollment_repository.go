package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/krs-admin-api/internal/models"
	"github.com/noah-isme/krs-admin-api/internal/query"
	appErrors "github.com/noah-isme/krs-admin-api/pkg/errors"
)

const enrollmentColumns = `e.id, s.nim AS student_nim, s.name AS student_name, c.code AS course_code, c.name AS course_name,
        e.semester, e.academic_year, e.status, e.student_id, e.course_id`

const enrollmentBase = `FROM enrollments e
        JOIN students s ON s.id = e.student_id
        JOIN courses c ON c.id = e.course_id`

// enrollmentFilterFields is the allow-list for advanced filter rules.
var enrollmentFilterFields = query.FieldMap{
	"student_nim":   {Column: "s.nim"},
	"student_name":  {Column: "s.name"},
	"course_code":   {Column: "c.code"},
	"course_name":   {Column: "c.name"},
	"semester":      {Column: "e.semester", CoerceIn: query.SemesterIn},
	"academic_year": {Column: "e.academic_year"},
	"status":        {Column: "e.status", CoerceIn: query.StatusIn},
}

// enrollmentSortable is the allow-list for sort fields.
var enrollmentSortable = map[string]string{
	"id":            "e.id",
	"student_nim":   "s.nim",
	"student_name":  "s.name",
	"course_code":   "c.code",
	"course_name":   "c.name",
	"semester":      "e.semester",
	"academic_year": "e.academic_year",
	"status":        "e.status",
	"created_at":    "e.created_at",
	"updated_at":    "e.updated_at",
}

var enrollmentSearchColumns = []string{"s.nim", "s.name", "c.code"}

// EnrollParams drives the atomic find-or-create-then-link write. Exactly one
// of StudentID/Student must be set, likewise CourseID/Course.
type EnrollParams struct {
	StudentID int64
	Student   *models.StudentUpsert
	CourseID  int64
	Course    *models.CourseUpsert

	AcademicYear string
	Semester     int
}

// EnrollmentRepository handles persistence of KRS records.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// buildFilters compiles quick filters, free-text search, and advanced rules
// into one predicate. Each quick filter is validated against its own
// allow-list and silently skipped otherwise; "ALL" acts like absence.
func buildEnrollmentFilters(q models.EnrollmentListQuery) *query.Builder {
	b := query.NewBuilder()

	if status, ok := models.ParseStatus(q.Status); ok {
		b.Where("e.status = " + b.Bind(status))
	}

	semesterRaw := strings.TrimSpace(q.Semester)
	if semesterRaw != "" && !strings.EqualFold(semesterRaw, "ALL") {
		if semester, err := strconv.Atoi(semesterRaw); err == nil && models.ValidSemester(semester) {
			b.Where("e.semester = " + b.Bind(semester))
		}
	}

	year := strings.TrimSpace(q.AcademicYear)
	if year != "" && !strings.EqualFold(year, "ALL") && models.ValidAcademicYear(year) {
		b.Where("e.academic_year = " + b.Bind(year))
	}

	query.ApplySearch(b, q.Search, enrollmentSearchColumns)
	query.ApplyRules(b, q.Filters, q.FilterLogic, enrollmentFilterFields)

	return b
}

// List returns one page of joined enrollment rows plus the unpaginated
// total for the same filter set.
func (r *EnrollmentRepository) List(ctx context.Context, q models.EnrollmentListQuery) ([]models.EnrollmentRow, int, error) {
	b := buildEnrollmentFilters(q)
	clause := b.Clause()

	// Total must be computed before pagination.
	countQuery := "SELECT COUNT(*) " + enrollmentBase + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, b.Args()...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}

	page := models.ClampPage(q.Page)
	size := models.ClampPageSize(q.PageSize)
	offset := (page - 1) * size

	order := query.OrderBy(q.Sorts, q.SortBy, q.SortDir, enrollmentSortable, "e.id")
	listQuery := fmt.Sprintf("SELECT %s %s%s%s LIMIT %d OFFSET %d",
		enrollmentColumns, enrollmentBase, clause, order, size, offset)

	rows := []models.EnrollmentRow{}
	if err := r.db.SelectContext(ctx, &rows, listQuery, b.Args()...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}
	return rows, total, nil
}

// Stream executes the same filter/sort pipeline without pagination and
// feeds rows to fn one at a time over a forward-only cursor.
func (r *EnrollmentRepository) Stream(ctx context.Context, q models.EnrollmentListQuery, fn func(models.EnrollmentRow) error) error {
	b := buildEnrollmentFilters(q)
	order := query.OrderBy(q.Sorts, q.SortBy, q.SortDir, enrollmentSortable, "e.id")
	streamQuery := "SELECT " + enrollmentColumns + " " + enrollmentBase + b.Clause() + order

	rows, err := r.db.QueryxContext(ctx, streamQuery, b.Args()...)
	if err != nil {
		return fmt.Errorf("stream enrollments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row models.EnrollmentRow
		if err := rows.StructScan(&row); err != nil {
			return fmt.Errorf("scan enrollment row: %w", err)
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return rows.Err()
}

// FindByID returns the bare enrollment record.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id int64) (*models.Enrollment, error) {
	const q = `SELECT id, student_id, course_id, academic_year, semester, status, created_at, updated_at
        FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, q, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns the joined listing row for one enrollment.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id int64) (*models.EnrollmentRow, error) {
	q := "SELECT " + enrollmentColumns + " " + enrollmentBase + " WHERE e.id = $1"
	var row models.EnrollmentRow
	if err := r.db.GetContext(ctx, &row, q, id); err != nil {
		return nil, err
	}
	return &row, nil
}

// Enroll resolves student and course identity and links them with a new
// enrollment inside one transaction. Any failure rolls back every effect,
// including students or courses created earlier in the same call.
func (r *EnrollmentRepository) Enroll(ctx context.Context, p EnrollParams) (*models.EnrollmentReceipt, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin enroll tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	studentID := p.StudentID
	if p.Student != nil {
		studentID, err = resolveStudent(ctx, tx, *p.Student)
		if err != nil {
			return nil, err
		}
	}

	courseID := p.CourseID
	if p.Course != nil {
		courseID, err = resolveCourse(ctx, tx, *p.Course)
		if err != nil {
			return nil, err
		}
	}

	dup, err := enrollmentExists(ctx, tx, studentID, courseID, p.AcademicYear, p.Semester, 0)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, errDuplicateEnrollment
	}

	receipt := &models.EnrollmentReceipt{
		StudentID: studentID,
		CourseID:  courseID,
		Status:    models.EnrollmentStatusSubmitted,
	}
	const insert = `INSERT INTO enrollments (student_id, course_id, academic_year, semester, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, NOW(), NOW()) RETURNING id`
	if err := tx.GetContext(ctx, &receipt.EnrollmentID, insert,
		studentID, courseID, p.AcademicYear, p.Semester, receipt.Status); err != nil {
		return nil, translateConstraint(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, translateConstraint(err)
	}
	return receipt, nil
}

// Update changes course/year/semester/status for an enrollment, re-running
// the uniqueness check excluding the record's own id. The student reference
// is immutable here.
func (r *EnrollmentRepository) Update(ctx context.Context, id, studentID, courseID int64, academicYear string, semester int, status models.EnrollmentStatus) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	dup, err := enrollmentExists(ctx, tx, studentID, courseID, academicYear, semester, id)
	if err != nil {
		return err
	}
	if dup {
		return errDuplicateEnrollment
	}

	const update = `UPDATE enrollments
        SET course_id = $2, academic_year = $3, semester = $4, status = $5, updated_at = NOW()
        WHERE id = $1`
	if _, err := tx.ExecContext(ctx, update, id, courseID, academicYear, semester, status); err != nil {
		return translateConstraint(err)
	}

	if err := tx.Commit(); err != nil {
		return translateConstraint(err)
	}
	return nil
}

// Delete removes an enrollment, reporting not-found when nothing matched.
func (r *EnrollmentRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM enrollments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	return nil
}

var errDuplicateEnrollment = appErrors.Conflict("enrollment",
	"enrollment already exists for this student, course, academic year and semester")

var errStudentIdentity = appErrors.Conflict("student",
	"nim or email already belongs to another student")

// resolveStudent probes by nim OR email. A hit must match both fields
// exactly; a partial match means the submission collides with a different
// person's record and is rejected. A full match refreshes the mutable name.
func resolveStudent(ctx context.Context, tx *sqlx.Tx, s models.StudentUpsert) (int64, error) {
	var existing models.Student
	err := tx.GetContext(ctx, &existing,
		`SELECT id, nim, name, email, created_at, updated_at FROM students WHERE nim = $1 OR email = $2 LIMIT 1`,
		s.NIM, s.Email)
	switch {
	case err == sql.ErrNoRows:
		var id int64
		const insert = `INSERT INTO students (nim, name, email, created_at, updated_at)
            VALUES ($1, $2, $3, NOW(), NOW()) RETURNING id`
		if err := tx.GetContext(ctx, &id, insert, s.NIM, s.Name, s.Email); err != nil {
			return 0, translateConstraint(err)
		}
		return id, nil
	case err != nil:
		return 0, fmt.Errorf("find student: %w", err)
	}

	if existing.NIM != s.NIM || existing.Email != s.Email {
		return 0, errStudentIdentity
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE students SET name = $2, updated_at = NOW() WHERE id = $1`, existing.ID, s.Name); err != nil {
		return 0, fmt.Errorf("update student: %w", err)
	}
	return existing.ID, nil
}

// resolveCourse is keyed solely by code: a hit is always updated in place.
func resolveCourse(ctx context.Context, tx *sqlx.Tx, c models.CourseUpsert) (int64, error) {
	var existing models.Course
	err := tx.GetContext(ctx, &existing,
		`SELECT id, code, name, credits, created_at, updated_at FROM courses WHERE code = $1 LIMIT 1`, c.Code)
	switch {
	case err == sql.ErrNoRows:
		var id int64
		const insert = `INSERT INTO courses (code, name, credits, created_at, updated_at)
            VALUES ($1, $2, $3, NOW(), NOW()) RETURNING id`
		if err := tx.GetContext(ctx, &id, insert, c.Code, c.Name, c.Credits); err != nil {
			return 0, translateConstraint(err)
		}
		return id, nil
	case err != nil:
		return 0, fmt.Errorf("find course: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE courses SET name = $2, credits = $3, updated_at = NOW() WHERE id = $1`,
		existing.ID, c.Name, c.Credits); err != nil {
		return 0, fmt.Errorf("update course: %w", err)
	}
	return existing.ID, nil
}

func enrollmentExists(ctx context.Context, tx *sqlx.Tx, studentID, courseID int64, academicYear string, semester int, excludeID int64) (bool, error) {
	q := `SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 AND academic_year = $3 AND semester = $4`
	args := []interface{}{studentID, courseID, academicYear, semester}
	if excludeID > 0 {
		q += fmt.Sprintf(" AND id <> $%d", len(args)+1)
		args = append(args, excludeID)
	}
	q += " LIMIT 1"

	var one int
	if err := tx.GetContext(ctx, &one, q, args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check duplicate enrollment: %w", err)
	}
	return true, nil
}

// translateConstraint maps unique-constraint violations raised by the
// storage backstop onto the same conflict errors as the pre-checks, so a
// lost race never surfaces as a raw storage error.
func translateConstraint(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		if strings.Contains(pqErr.Constraint, "student") && !strings.Contains(pqErr.Constraint, "enrollment") {
			return errStudentIdentity
		}
		return errDuplicateEnrollment
	}
	return err
}
