package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/coursehub/coursehub-api/internal/models"
)

// HomeworkRepository handles persistence of homework assignments.
type HomeworkRepository struct {
	db *sqlx.DB
}

// NewHomeworkRepository constructs the repository.
func NewHomeworkRepository(db *sqlx.DB) *HomeworkRepository {
	return &HomeworkRepository{db: db}
}

const homeworkColumns = `id, course_id, title, description, due_date, submission_type, published, created_at, updated_at`

// Create persists a new homework.
func (r *HomeworkRepository) Create(ctx context.Context, homework *models.Homework) error {
	if homework.ID == "" {
		homework.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if homework.CreatedAt.IsZero() {
		homework.CreatedAt = now
	}
	homework.UpdatedAt = now
	const query = `INSERT INTO homeworks (id, course_id, title, description, due_date, submission_type, published, created_at, updated_at)
        VALUES (:id, :course_id, :title, :description, :due_date, :submission_type, :published, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, homework); err != nil {
		return fmt.Errorf("create homework: %w", err)
	}
	return nil
}

// FindByID returns a homework by its ID.
func (r *HomeworkRepository) FindByID(ctx context.Context, id string) (*models.Homework, error) {
	query := fmt.Sprintf(`SELECT %s FROM homeworks WHERE id = $1`, homeworkColumns)
	var homework models.Homework
	if err := r.db.GetContext(ctx, &homework, query, id); err != nil {
		return nil, err
	}
	return &homework, nil
}

// ListByCourse returns a course's homework, optionally published only.
func (r *HomeworkRepository) ListByCourse(ctx context.Context, courseID string, publishedOnly bool) ([]models.Homework, error) {
	query := fmt.Sprintf(`SELECT %s FROM homeworks WHERE course_id = $1`, homeworkColumns)
	if publishedOnly {
		query += " AND published = TRUE"
	}
	query += " ORDER BY due_date NULLS LAST, created_at"
	var homeworks []models.Homework
	if err := r.db.SelectContext(ctx, &homeworks, query, courseID); err != nil {
		return nil, fmt.Errorf("list homeworks: %w", err)
	}
	return homeworks, nil
}

// Update mutates editable homework fields.
func (r *HomeworkRepository) Update(ctx context.Context, homework *models.Homework) error {
	homework.UpdatedAt = time.Now().UTC()
	const query = `UPDATE homeworks SET title = :title, description = :description, due_date = :due_date,
        submission_type = :submission_type, published = :published, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, homework); err != nil {
		return fmt.Errorf("update homework: %w", err)
	}
	return nil
}

// Delete removes a homework; submissions cascade.
func (r *HomeworkRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM homeworks WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete homework: %w", err)
	}
	return nil
}
