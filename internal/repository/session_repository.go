package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/coursehub/coursehub-api/internal/models"
)

// SessionRepository handles persistence of course sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, course_id, title, starts_at, duration_minutes, meeting_link, created_at, updated_at`

// Create persists a single session.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	const query = `INSERT INTO sessions (id, course_id, title, starts_at, duration_minutes, meeting_link, created_at, updated_at)
        VALUES (:id, :course_id, :title, :starts_at, :duration_minutes, :meeting_link, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// CreateBatch inserts generated sessions in one statement so a failure
// fails the whole batch rather than leaving a partial schedule.
func (r *SessionRepository) CreateBatch(ctx context.Context, sessions []models.Session) error {
	if len(sessions) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range sessions {
		if sessions[i].ID == "" {
			sessions[i].ID = uuid.NewString()
		}
		if sessions[i].CreatedAt.IsZero() {
			sessions[i].CreatedAt = now
		}
		sessions[i].UpdatedAt = now
	}
	const query = `INSERT INTO sessions (id, course_id, title, starts_at, duration_minutes, meeting_link, created_at, updated_at)
        VALUES (:id, :course_id, :title, :starts_at, :duration_minutes, :meeting_link, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, sessions); err != nil {
		return fmt.Errorf("create session batch: %w", err)
	}
	return nil
}

// FindByID returns a session by its ID.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE id = $1`, sessionColumns)
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListByCourse returns a course's sessions ordered by start time.
func (r *SessionRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE course_id = $1 ORDER BY starts_at`, sessionColumns)
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, courseID); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// CountByCourse returns how many sessions a course has.
func (r *SessionRepository) CountByCourse(ctx context.Context, courseID string) (int, error) {
	const query = `SELECT COUNT(*) FROM sessions WHERE course_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, courseID); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return count, nil
}

// LatestByCourse returns the session with the latest start time, or
// sql.ErrNoRows when the course has none.
func (r *SessionRepository) LatestByCourse(ctx context.Context, courseID string) (*models.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE course_id = $1 ORDER BY starts_at DESC LIMIT 1`, sessionColumns)
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, courseID); err != nil {
		return nil, err
	}
	return &session, nil
}

// Update mutates editable session fields.
func (r *SessionRepository) Update(ctx context.Context, session *models.Session) error {
	session.UpdatedAt = time.Now().UTC()
	const query = `UPDATE sessions SET title = :title, starts_at = :starts_at, duration_minutes = :duration_minutes,
        meeting_link = :meeting_link, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// Delete removes a session.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM sessions WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
