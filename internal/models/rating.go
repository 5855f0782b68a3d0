package models

import "time"

// Rating is a 1–5 star course review, one per (course, student).
type Rating struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	Stars     int       `db:"stars" json:"stars"`
	Comment   string    `db:"comment" json:"comment"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// RatingDetail adds the reviewer's display name.
type RatingDetail struct {
	Rating
	StudentName string `db:"student_name" json:"student_name"`
}

// RatingSummary is the aggregate shown on course cards.
type RatingSummary struct {
	CourseID string  `db:"-" json:"course_id"`
	Average  float64 `db:"average" json:"average"`
	Count    int     `db:"count" json:"count"`
}
