package models

import (
	"regexp"
	"time"
)

// nimPattern is the natural-key format for students: 8 to 12 digits.
var nimPattern = regexp.MustCompile(`^\d{8,12}$`)

// Student represents a learner identified by their NIM.
type Student struct {
	ID        int64     `db:"id" json:"id"`
	NIM       string    `db:"nim" json:"nim"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StudentRow is the capped picker-listing projection.
type StudentRow struct {
	ID    int64  `db:"id" json:"id"`
	NIM   string `db:"nim" json:"nim"`
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`
}

// StudentUpsert carries the fields reconciled on a mode=new submission.
type StudentUpsert struct {
	NIM   string
	Name  string
	Email string
}

// ValidNIM reports whether nim matches the natural-key format.
func ValidNIM(nim string) bool {
	return nimPattern.MatchString(nim)
}
