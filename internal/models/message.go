package models

import "time"

// Message is a course-scoped direct message between an instructor and an
// enrolled learner. Unread counts are polled, not pushed.
type Message struct {
	ID          string    `db:"id" json:"id"`
	CourseID    string    `db:"course_id" json:"course_id"`
	SenderID    string    `db:"sender_id" json:"sender_id"`
	RecipientID string    `db:"recipient_id" json:"recipient_id"`
	Body        string    `db:"body" json:"body"`
	Read        bool      `db:"read" json:"read"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// MessageDetail adds sender display info for thread rendering.
type MessageDetail struct {
	Message
	SenderName string `db:"sender_name" json:"sender_name"`
}
