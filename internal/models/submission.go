package models

import "time"

// SubmissionStatus is the grading lifecycle of a submission.
type SubmissionStatus string

const (
	SubmissionStatusSubmitted SubmissionStatus = "submitted"
	SubmissionStatusGraded    SubmissionStatus = "graded"
)

// Submission is a learner's answer to a homework. Exactly one of StudentID
// and StudentProfileID is set, mirroring Enrollment.
type Submission struct {
	ID               string           `db:"id" json:"id"`
	HomeworkID       string           `db:"homework_id" json:"homework_id"`
	StudentID        *string          `db:"student_id" json:"student_id,omitempty"`
	StudentProfileID *string          `db:"student_profile_id" json:"student_profile_id,omitempty"`
	Content          string           `db:"content" json:"content"`
	FileKey          *string          `db:"file_key" json:"file_key,omitempty"`
	Status           SubmissionStatus `db:"status" json:"status"`
	Grade            *int             `db:"grade" json:"grade,omitempty"`
	Feedback         *string          `db:"feedback" json:"feedback,omitempty"`
	SubmittedAt      time.Time        `db:"submitted_at" json:"submitted_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

// SubmissionFileLink is a time-limited download URL for a submission's
// uploaded file.
type SubmissionFileLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SubmissionDetail enriches Submission with learner display info.
type SubmissionDetail struct {
	Submission
	StudentName   string `db:"student_name" json:"student_name"`
	HomeworkTitle string `db:"homework_title" json:"homework_title"`
}
