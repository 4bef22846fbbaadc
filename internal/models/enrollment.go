package models

import (
	"regexp"
	"strings"
	"time"
)

// EnrollmentStatus is the workflow state of a KRS record.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusDraft     EnrollmentStatus = "DRAFT"
	EnrollmentStatusSubmitted EnrollmentStatus = "SUBMITTED"
	EnrollmentStatusApproved  EnrollmentStatus = "APPROVED"
	EnrollmentStatusRejected  EnrollmentStatus = "REJECTED"
)

var academicYearPattern = regexp.MustCompile(`^\d{4}/\d{4}$`)

// ParseStatus normalises raw into the status enum. The second return is
// false for values outside the allow-list.
func ParseStatus(raw string) (EnrollmentStatus, bool) {
	switch EnrollmentStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case EnrollmentStatusDraft:
		return EnrollmentStatusDraft, true
	case EnrollmentStatusSubmitted:
		return EnrollmentStatusSubmitted, true
	case EnrollmentStatusApproved:
		return EnrollmentStatusApproved, true
	case EnrollmentStatusRejected:
		return EnrollmentStatusRejected, true
	}
	return "", false
}

// ValidSemester reports whether semester is in the {1, 2} enum.
func ValidSemester(semester int) bool {
	return semester == 1 || semester == 2
}

// ValidAcademicYear reports whether year matches YYYY/YYYY.
func ValidAcademicYear(year string) bool {
	return academicYearPattern.MatchString(year)
}

// Enrollment links a student to a course for one academic year and semester.
type Enrollment struct {
	ID           int64            `db:"id" json:"id"`
	StudentID    int64            `db:"student_id" json:"student_id"`
	CourseID     int64            `db:"course_id" json:"course_id"`
	AcademicYear string           `db:"academic_year" json:"academic_year"`
	Semester     int              `db:"semester" json:"semester"`
	Status       EnrollmentStatus `db:"status" json:"status"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentRow is the joined listing projection.
type EnrollmentRow struct {
	ID           int64            `db:"id" json:"id"`
	StudentNIM   string           `db:"student_nim" json:"student_nim"`
	StudentName  string           `db:"student_name" json:"student_name"`
	CourseCode   string           `db:"course_code" json:"course_code"`
	CourseName   string           `db:"course_name" json:"course_name"`
	Semester     int              `db:"semester" json:"semester"`
	AcademicYear string           `db:"academic_year" json:"academic_year"`
	Status       EnrollmentStatus `db:"status" json:"status"`
	StudentID    int64            `db:"student_id" json:"student_id"`
	CourseID     int64            `db:"course_id" json:"course_id"`
}

// EnrollmentReceipt identifies the records touched by an atomic enroll.
type EnrollmentReceipt struct {
	EnrollmentID int64            `json:"enrollment_id"`
	StudentID    int64            `json:"student_id"`
	CourseID     int64            `json:"course_id"`
	Status       EnrollmentStatus `json:"status"`
}

// FilterRule is one client-supplied advanced filter criterion. Value keeps
// the decoded JSON shape; the compiler enforces per-operator contracts.
type FilterRule struct {
	Field string      `json:"field"`
	Op    string      `json:"op"`
	Value interface{} `json:"value"`
}

// SortRule is one client-supplied ordering criterion.
type SortRule struct {
	Field string `json:"field"`
	Dir   string `json:"dir"`
}

// EnrollmentListQuery gathers every listing parameter after request parsing.
// Quick filters stay raw here; each is validated against its own allow-list
// when the query is compiled.
type EnrollmentListQuery struct {
	Page     int
	PageSize int

	Status       string
	Semester     string
	AcademicYear string
	Search       string

	Filters     []FilterRule
	FilterLogic string

	Sorts   []SortRule
	SortBy  string
	SortDir string
}
