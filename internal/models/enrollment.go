package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusDropped   EnrollmentStatus = "dropped"
)

// Enrollment links a student account or a parent-managed profile to a
// course. Exactly one of StudentID and StudentProfileID is set.
type Enrollment struct {
	ID               string           `db:"id" json:"id"`
	CourseID         string           `db:"course_id" json:"course_id"`
	StudentID        *string          `db:"student_id" json:"student_id,omitempty"`
	StudentProfileID *string          `db:"student_profile_id" json:"student_profile_id,omitempty"`
	Status           EnrollmentStatus `db:"status" json:"status"`
	Progress         int              `db:"progress" json:"progress"`
	EnrolledAt       time.Time        `db:"enrolled_at" json:"enrolled_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with course and learner info.
type EnrollmentDetail struct {
	Enrollment
	CourseTitle    string `db:"course_title" json:"course_title"`
	InstructorName string `db:"instructor_name" json:"instructor_name"`
	StudentName    string `db:"student_name" json:"student_name"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	CourseID         string
	StudentID        string
	StudentProfileID string
	Status           EnrollmentStatus
	Page             int
	PageSize         int
}

// Actor identifies who an enrollment or submission belongs to: a student
// account or a parent-managed student profile, never both.
type Actor struct {
	StudentID        *string
	StudentProfileID *string
}
