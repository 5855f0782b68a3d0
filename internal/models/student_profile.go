package models

import "time"

// StudentProfile is a parent-managed child profile. Enrollments may belong
// either to a user account or to one of these profiles.
type StudentProfile struct {
	ID        string    `db:"id" json:"id"`
	ParentID  string    `db:"parent_id" json:"parent_id"`
	FullName  string    `db:"full_name" json:"full_name"`
	BirthYear *int      `db:"birth_year" json:"birth_year,omitempty"`
	Notes     string    `db:"notes" json:"notes"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
