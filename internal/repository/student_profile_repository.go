package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/coursehub/coursehub-api/internal/models"
)

// StudentProfileRepository persists parent-managed learner profiles.
type StudentProfileRepository struct {
	db *sqlx.DB
}

// NewStudentProfileRepository constructs the repository.
func NewStudentProfileRepository(db *sqlx.DB) *StudentProfileRepository {
	return &StudentProfileRepository{db: db}
}

// Create persists a new profile.
func (r *StudentProfileRepository) Create(ctx context.Context, profile *models.StudentProfile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	const query = `INSERT INTO student_profiles (id, parent_id, full_name, birth_year, notes, created_at, updated_at)
        VALUES (:id, :parent_id, :full_name, :birth_year, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("create student profile: %w", err)
	}
	return nil
}

// FindByID returns a profile by its ID.
func (r *StudentProfileRepository) FindByID(ctx context.Context, id string) (*models.StudentProfile, error) {
	const query = `SELECT id, parent_id, full_name, birth_year, notes, created_at, updated_at FROM student_profiles WHERE id = $1`
	var profile models.StudentProfile
	if err := r.db.GetContext(ctx, &profile, query, id); err != nil {
		return nil, err
	}
	return &profile, nil
}

// ListByParent returns every profile a parent manages.
func (r *StudentProfileRepository) ListByParent(ctx context.Context, parentID string) ([]models.StudentProfile, error) {
	const query = `SELECT id, parent_id, full_name, birth_year, notes, created_at, updated_at FROM student_profiles WHERE parent_id = $1 ORDER BY created_at`
	var profiles []models.StudentProfile
	if err := r.db.SelectContext(ctx, &profiles, query, parentID); err != nil {
		return nil, fmt.Errorf("list student profiles: %w", err)
	}
	return profiles, nil
}

// Update mutates editable profile fields.
func (r *StudentProfileRepository) Update(ctx context.Context, id, fullName string, birthYear *int, notes string) error {
	const query = `UPDATE student_profiles SET full_name = $2, birth_year = $3, notes = $4, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, fullName, birthYear, notes, time.Now().UTC()); err != nil {
		return fmt.Errorf("update student profile: %w", err)
	}
	return nil
}

// Delete removes a profile.
func (r *StudentProfileRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM student_profiles WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete student profile: %w", err)
	}
	return nil
}
