package models

import "time"

// SubmissionType constrains how homework answers are handed in.
type SubmissionType string

const (
	SubmissionTypeText      SubmissionType = "text"
	SubmissionTypeFile      SubmissionType = "file"
	SubmissionTypeCheckmark SubmissionType = "checkmark"
)

// Homework is a course assignment.
type Homework struct {
	ID             string         `db:"id" json:"id"`
	CourseID       string         `db:"course_id" json:"course_id"`
	Title          string         `db:"title" json:"title"`
	Description    string         `db:"description" json:"description"`
	DueDate        *time.Time     `db:"due_date" json:"due_date,omitempty"`
	SubmissionType SubmissionType `db:"submission_type" json:"submission_type"`
	Published      bool           `db:"published" json:"published"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}
