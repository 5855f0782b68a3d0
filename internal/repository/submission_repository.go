package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/coursehub/coursehub-api/internal/models"
)

// SubmissionRepository handles persistence of homework submissions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

const submissionColumns = `s.id, s.homework_id, s.student_id, s.student_profile_id, s.content, s.file_key, s.status, s.grade, s.feedback, s.submitted_at, s.updated_at`

// Create persists a new submission.
func (r *SubmissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = now
	}
	submission.UpdatedAt = now
	if submission.Status == "" {
		submission.Status = models.SubmissionStatusSubmitted
	}
	const query = `INSERT INTO submissions (id, homework_id, student_id, student_profile_id, content, file_key, status, grade, feedback, submitted_at, updated_at)
        VALUES (:id, :homework_id, :student_id, :student_profile_id, :content, :file_key, :status, :grade, :feedback, :submitted_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, submission); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// FindByID returns a submission by its ID.
func (r *SubmissionRepository) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	query := fmt.Sprintf(`SELECT %s FROM submissions s WHERE s.id = $1`, submissionColumns)
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		return nil, err
	}
	return &submission, nil
}

// FindByHomeworkAndActor returns the submission for a homework/actor pair,
// or sql.ErrNoRows. At most one submission exists per pair.
func (r *SubmissionRepository) FindByHomeworkAndActor(ctx context.Context, homeworkID string, actor models.Actor) (*models.Submission, error) {
	query := fmt.Sprintf(`SELECT %s FROM submissions s WHERE s.homework_id = $1`, submissionColumns)
	args := []interface{}{homeworkID}
	switch {
	case actor.StudentID != nil:
		query += " AND s.student_id = $2"
		args = append(args, *actor.StudentID)
	case actor.StudentProfileID != nil:
		query += " AND s.student_profile_id = $2"
		args = append(args, *actor.StudentProfileID)
	default:
		return nil, sql.ErrNoRows
	}
	query += " LIMIT 1"
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, args...); err != nil {
		return nil, err
	}
	return &submission, nil
}

// ListByHomework returns submissions with learner display names.
func (r *SubmissionRepository) ListByHomework(ctx context.Context, homeworkID string) ([]models.SubmissionDetail, error) {
	query := fmt.Sprintf(`SELECT %s,
        COALESCE(u.full_name, sp.full_name, '') AS student_name,
        h.title AS homework_title
        FROM submissions s
        LEFT JOIN users u ON u.id = s.student_id
        LEFT JOIN student_profiles sp ON sp.id = s.student_profile_id
        LEFT JOIN homeworks h ON h.id = s.homework_id
        WHERE s.homework_id = $1 ORDER BY s.submitted_at`, submissionColumns)
	var submissions []models.SubmissionDetail
	if err := r.db.SelectContext(ctx, &submissions, query, homeworkID); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}

// UpdateContent replaces an ungraded submission's answer.
func (r *SubmissionRepository) UpdateContent(ctx context.Context, id, content string, fileKey *string) error {
	const query = `UPDATE submissions SET content = $2, file_key = $3, submitted_at = $4, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, content, fileKey, time.Now().UTC()); err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	return nil
}

// Grade records the grade and feedback and flips the status.
func (r *SubmissionRepository) Grade(ctx context.Context, id string, grade int, feedback string) error {
	const query = `UPDATE submissions SET grade = $2, feedback = $3, status = $4, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, grade, feedback, models.SubmissionStatusGraded, time.Now().UTC()); err != nil {
		return fmt.Errorf("grade submission: %w", err)
	}
	return nil
}
