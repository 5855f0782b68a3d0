package models

import (
	"time"

	"github.com/lib/pq"
)

// Course is an instructor-owned offering with a weekly meeting schedule.
type Course struct {
	ID                     string         `db:"id" json:"id"`
	InstructorID           string         `db:"instructor_id" json:"instructor_id"`
	Title                  string         `db:"title" json:"title"`
	Description            string         `db:"description" json:"description"`
	Category               string         `db:"category" json:"category"`
	EnrollmentLimit        *int           `db:"enrollment_limit" json:"enrollment_limit,omitempty"`
	StartDate              time.Time      `db:"start_date" json:"start_date"`
	EndDate                *time.Time     `db:"end_date" json:"end_date,omitempty"`
	HasEndDate             bool           `db:"has_end_date" json:"has_end_date"`
	SelectedDays           pq.StringArray `db:"selected_days" json:"selected_days"`
	SessionTime            string         `db:"session_time" json:"session_time"`
	SessionDurationMinutes int            `db:"session_duration_minutes" json:"session_duration_minutes"`
	MeetingLink            *string        `db:"meeting_link" json:"meeting_link,omitempty"`
	Published              bool           `db:"published" json:"published"`
	CreatedAt              time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time      `db:"updated_at" json:"updated_at"`
}

// CourseDetail enriches Course with joined display fields.
type CourseDetail struct {
	Course
	InstructorName string  `db:"instructor_name" json:"instructor_name"`
	EnrolledCount  int     `db:"enrolled_count" json:"enrolled_count"`
	AverageRating  float64 `db:"average_rating" json:"average_rating"`
	RatingCount    int     `db:"rating_count" json:"rating_count"`
}

// CourseFilter captures catalog filtering criteria.
type CourseFilter struct {
	Category      string
	Search        string
	InstructorID  string
	PublishedOnly bool
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}
