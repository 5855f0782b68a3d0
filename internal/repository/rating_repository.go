package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/coursehub/coursehub-api/internal/models"
)

// RatingRepository handles persistence of course ratings.
type RatingRepository struct {
	db *sqlx.DB
}

// NewRatingRepository constructs the repository.
func NewRatingRepository(db *sqlx.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

// Upsert inserts a rating or replaces the student's previous one for the
// same course, relying on the (course_id, student_id) unique constraint.
func (r *RatingRepository) Upsert(ctx context.Context, rating *models.Rating) error {
	if rating.ID == "" {
		rating.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	rating.CreatedAt = now
	rating.UpdatedAt = now
	const query = `INSERT INTO ratings (id, course_id, student_id, stars, comment, created_at, updated_at)
        VALUES (:id, :course_id, :student_id, :stars, :comment, :created_at, :updated_at)
        ON CONFLICT (course_id, student_id)
        DO UPDATE SET stars = EXCLUDED.stars, comment = EXCLUDED.comment, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, rating); err != nil {
		return fmt.Errorf("upsert rating: %w", err)
	}
	return nil
}

// FindByCourseAndStudent returns the student's rating for a course.
func (r *RatingRepository) FindByCourseAndStudent(ctx context.Context, courseID, studentID string) (*models.Rating, error) {
	const query = `SELECT id, course_id, student_id, stars, comment, created_at, updated_at
        FROM ratings WHERE course_id = $1 AND student_id = $2`
	var rating models.Rating
	if err := r.db.GetContext(ctx, &rating, query, courseID, studentID); err != nil {
		return nil, err
	}
	return &rating, nil
}

// ListByCourse returns all ratings of a course with reviewer names, newest first.
func (r *RatingRepository) ListByCourse(ctx context.Context, courseID string) ([]models.RatingDetail, error) {
	const query = `SELECT r.id, r.course_id, r.student_id, r.stars, r.comment, r.created_at, r.updated_at,
        COALESCE(u.full_name, '') AS student_name
        FROM ratings r
        LEFT JOIN users u ON u.id = r.student_id
        WHERE r.course_id = $1 ORDER BY r.created_at DESC`
	var ratings []models.RatingDetail
	if err := r.db.SelectContext(ctx, &ratings, query, courseID); err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	return ratings, nil
}

// Summary returns the rating average and count for a course.
func (r *RatingRepository) Summary(ctx context.Context, courseID string) (*models.RatingSummary, error) {
	const query = `SELECT COALESCE(AVG(stars), 0) AS average, COUNT(*) AS count FROM ratings WHERE course_id = $1`
	var summary models.RatingSummary
	if err := r.db.GetContext(ctx, &summary, query, courseID); err != nil {
		return nil, fmt.Errorf("rating summary: %w", err)
	}
	summary.CourseID = courseID
	return &summary, nil
}

// Delete removes a rating row.
func (r *RatingRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM ratings WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete rating: %w", err)
	}
	return nil
}
