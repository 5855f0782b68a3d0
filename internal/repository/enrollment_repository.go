package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/coursehub/coursehub-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `e.id, e.course_id, e.student_id, e.student_profile_id, e.status, e.progress, e.enrolled_at, e.updated_at`

const enrollmentDetailColumns = enrollmentColumns + `,
        c.title AS course_title,
        i.full_name AS instructor_name,
        COALESCE(u.full_name, sp.full_name, '') AS student_name`

const enrollmentDetailJoins = `
LEFT JOIN courses c ON c.id = e.course_id
LEFT JOIN users i ON i.id = c.instructor_id
LEFT JOIN users u ON u.id = e.student_id
LEFT JOIN student_profiles sp ON sp.id = e.student_profile_id`

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = now
	}
	enrollment.UpdatedAt = now
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
	const query = `INSERT INTO enrollments (id, course_id, student_id, student_profile_id, status, progress, enrolled_at, updated_at)
        VALUES (:id, :course_id, :student_id, :student_profile_id, :status, :progress, :enrolled_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments e WHERE e.id = $1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with contextual info.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments e %s WHERE e.id = $1`, enrollmentDetailColumns, enrollmentDetailJoins)
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindByCourseAndActor returns the enrollment row for a course/actor pair
// regardless of status, or sql.ErrNoRows. At most one row exists per pair;
// dropped rows are reactivated rather than duplicated.
func (r *EnrollmentRepository) FindByCourseAndActor(ctx context.Context, courseID string, actor models.Actor) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments e WHERE e.course_id = $1`, enrollmentColumns)
	args := []interface{}{courseID}
	switch {
	case actor.StudentID != nil:
		query += " AND e.student_id = $2"
		args = append(args, *actor.StudentID)
	case actor.StudentProfileID != nil:
		query += " AND e.student_profile_id = $2"
		args = append(args, *actor.StudentProfileID)
	default:
		return nil, sql.ErrNoRows
	}
	query += " LIMIT 1"
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, args...); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// List returns enrollment details filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.StudentProfileID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_profile_id = $%d", len(args)+1))
		args = append(args, filter.StudentProfileID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM enrollments e %s%s ORDER BY e.enrolled_at DESC LIMIT %d OFFSET %d`,
		enrollmentDetailColumns, enrollmentDetailJoins, clause, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM enrollments e%s", clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// CountActiveByCourse returns the number of non-dropped enrollments.
func (r *EnrollmentRepository) CountActiveByCourse(ctx context.Context, courseID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND status <> $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, courseID, models.EnrollmentStatusDropped); err != nil {
		return 0, fmt.Errorf("count active enrollments: %w", err)
	}
	return count, nil
}

// CountActiveByProfile returns the number of non-dropped enrollments held
// by one student profile.
func (r *EnrollmentRepository) CountActiveByProfile(ctx context.Context, profileID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE student_profile_id = $1 AND status <> $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, profileID, models.EnrollmentStatusDropped); err != nil {
		return 0, fmt.Errorf("count active enrollments: %w", err)
	}
	return count, nil
}

// HasActiveLink reports whether a user holds a non-dropped enrollment in a
// course, either directly as a student or through a profile they parent.
func (r *EnrollmentRepository) HasActiveLink(ctx context.Context, courseID, userID string) (bool, error) {
	const query = `SELECT EXISTS (
        SELECT 1 FROM enrollments e
        LEFT JOIN student_profiles sp ON sp.id = e.student_profile_id
        WHERE e.course_id = $1 AND e.status <> $2 AND (e.student_id = $3 OR sp.parent_id = $3))`
	var linked bool
	if err := r.db.GetContext(ctx, &linked, query, courseID, models.EnrollmentStatusDropped, userID); err != nil {
		return false, fmt.Errorf("check enrollment link: %w", err)
	}
	return linked, nil
}

// Reactivate resets a dropped enrollment in place: same row id, status back
// to active, progress back to zero.
func (r *EnrollmentRepository) Reactivate(ctx context.Context, id string) error {
	const query = `UPDATE enrollments SET status = $2, progress = 0, enrolled_at = $3, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.EnrollmentStatusActive, time.Now().UTC()); err != nil {
		return fmt.Errorf("reactivate enrollment: %w", err)
	}
	return nil
}

// UpdateStatus updates the lifecycle status.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	const query = `UPDATE enrollments SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}

// UpdateProgress sets the progress percentage.
func (r *EnrollmentRepository) UpdateProgress(ctx context.Context, id string, progress int) error {
	const query = `UPDATE enrollments SET progress = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, progress, time.Now().UTC()); err != nil {
		return fmt.Errorf("update enrollment progress: %w", err)
	}
	return nil
}
