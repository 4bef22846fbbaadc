package models

import (
	"regexp"
	"time"
)

// codePattern is the natural-key format for courses, e.g. CS101 or MATH204.
var codePattern = regexp.MustCompile(`^[A-Z]{2,4}[0-9]{3}$`)

// Course represents a course identified by its code.
type Course struct {
	ID        int64     `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	Credits   int       `db:"credits" json:"credits"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CourseRow is the capped picker-listing projection.
type CourseRow struct {
	ID      int64  `db:"id" json:"id"`
	Code    string `db:"code" json:"code"`
	Name    string `db:"name" json:"name"`
	Credits int    `db:"credits" json:"credits"`
}

// CourseUpsert carries the fields reconciled on a mode=new submission.
type CourseUpsert struct {
	Code    string
	Name    string
	Credits int
}

// ValidCourseCode reports whether code matches the natural-key format.
func ValidCourseCode(code string) bool {
	return codePattern.MatchString(code)
}
