package models

import "time"

// ResourceType distinguishes uploaded files from external links.
type ResourceType string

const (
	ResourceTypeFile ResourceType = "file"
	ResourceTypeLink ResourceType = "link"
)

// Resource is supplementary course material.
type Resource struct {
	ID        string       `db:"id" json:"id"`
	CourseID  string       `db:"course_id" json:"course_id"`
	Type      ResourceType `db:"type" json:"type"`
	Title     string       `db:"title" json:"title"`
	URL       string       `db:"url" json:"url"`
	FileKey   *string      `db:"file_key" json:"-"`
	Visible   bool         `db:"visible" json:"visible"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt time.Time    `db:"updated_at" json:"updated_at"`
}
