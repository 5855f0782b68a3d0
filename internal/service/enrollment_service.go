package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/coursehub/coursehub-api/internal/models"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
)

type enrollmentRepository interface {
	Create(ctx context.Context, enrollment *models.Enrollment) error
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	FindByCourseAndActor(ctx context.Context, courseID string, actor models.Actor) (*models.Enrollment, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	CountActiveByCourse(ctx context.Context, courseID string) (int, error)
	Reactivate(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error
	UpdateProgress(ctx context.Context, id string, progress int) error
}

type enrollmentCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type enrollmentProfileReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentProfile, error)
}

type instructorReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type enrollmentNotifier interface {
	NotifyEnrollment(instructorEmail, instructorName, courseTitle, learnerName string)
}

// EnrollRequest enrolls the caller, or one of a parent's profiles, into a
// course.
type EnrollRequest struct {
	CourseID         string  `json:"course_id" validate:"required"`
	StudentProfileID *string `json:"student_profile_id,omitempty"`
}

// UpdateProgressRequest sets completion percentage on an enrollment.
type UpdateProgressRequest struct {
	Progress int `json:"progress" validate:"min=0,max=100"`
}

// EnrollmentService orchestrates the enrollment lifecycle.
type EnrollmentService struct {
	repo      enrollmentRepository
	courses   enrollmentCourseReader
	profiles  enrollmentProfileReader
	users     instructorReader
	notifier  enrollmentNotifier
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, courses enrollmentCourseReader, profiles enrollmentProfileReader, users instructorReader, notifier enrollmentNotifier, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, courses: courses, profiles: profiles, users: users, notifier: notifier, audit: audit, validator: validate, logger: logger}
}

// Enroll creates an active enrollment for the resolved learner. A dropped
// enrollment for the same pair is reactivated in place instead of creating
// a second row.
func (s *EnrollmentService) Enroll(ctx context.Context, claims *models.JWTClaims, req EnrollRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	actor, learnerName, err := s.resolveActor(ctx, claims, req.StudentProfileID)
	if err != nil {
		return nil, err
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Operation(err, "failed to load course")
	}
	if !course.Published {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}

	existing, err := s.repo.FindByCourseAndActor(ctx, req.CourseID, actor)
	switch {
	case err == nil && existing.Status != models.EnrollmentStatusDropped:
		return nil, appErrors.Clone(appErrors.ErrConflict, "already enrolled in course")
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Operation(err, "failed to check enrollment")
	}

	if course.EnrollmentLimit != nil {
		active, err := s.repo.CountActiveByCourse(ctx, req.CourseID)
		if err != nil {
			return nil, appErrors.Operation(err, "failed to count enrollments")
		}
		if active >= *course.EnrollmentLimit {
			return nil, appErrors.Clone(appErrors.ErrConflict, "course is full")
		}
	}

	var enrollmentID string
	if existing != nil {
		if err := s.repo.Reactivate(ctx, existing.ID); err != nil {
			return nil, appErrors.Operation(err, "failed to reactivate enrollment")
		}
		enrollmentID = existing.ID
	} else {
		enrollment := &models.Enrollment{
			CourseID:         req.CourseID,
			StudentID:        actor.StudentID,
			StudentProfileID: actor.StudentProfileID,
			Status:           models.EnrollmentStatusActive,
		}
		if err := s.repo.Create(ctx, enrollment); err != nil {
			return nil, appErrors.Operation(err, "failed to create enrollment")
		}
		enrollmentID = enrollment.ID
	}

	s.notifyInstructor(ctx, course, learnerName)
	s.recordAudit(ctx, claims.UserID, models.AuditActionEnroll, enrollmentID)

	detail, err := s.repo.FindDetailByID(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Operation(err, "failed to load enrollment detail")
	}
	return detail, nil
}

// List returns enrollments visible to the caller. Students and parents see
// their own; instructors see rosters of their courses; admins see all.
func (s *EnrollmentService) List(ctx context.Context, claims *models.JWTClaims, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	switch claims.Role {
	case models.RoleStudent:
		filter.StudentID = claims.UserID
		filter.StudentProfileID = ""
	case models.RoleInstructor:
		if filter.CourseID == "" {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "course_id is required")
		}
		course, err := s.courses.FindByID(ctx, filter.CourseID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
			}
			return nil, nil, appErrors.Operation(err, "failed to load course")
		}
		if course.InstructorID != claims.UserID {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
		}
	case models.RoleParent:
		if filter.StudentProfileID == "" {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "student_profile_id is required")
		}
		if _, _, err := s.resolveActor(ctx, claims, &filter.StudentProfileID); err != nil {
			return nil, nil, err
		}
	}

	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Operation(err, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return enrollments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Withdraw drops an enrollment owned by the caller.
func (s *EnrollmentService) Withdraw(ctx context.Context, claims *models.JWTClaims, id string) (*models.EnrollmentDetail, error) {
	enrollment, err := s.loadOwned(ctx, claims, id)
	if err != nil {
		return nil, err
	}
	if enrollment.Status == models.EnrollmentStatusDropped {
		return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment already dropped")
	}
	if err := s.repo.UpdateStatus(ctx, id, models.EnrollmentStatusDropped); err != nil {
		return nil, appErrors.Operation(err, "failed to drop enrollment")
	}
	s.recordAudit(ctx, claims.UserID, models.AuditActionWithdraw, id)
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Operation(err, "failed to load enrollment detail")
	}
	return detail, nil
}

// Complete marks an enrollment completed. Instructor of the course only.
func (s *EnrollmentService) Complete(ctx context.Context, claims *models.JWTClaims, id string) (*models.EnrollmentDetail, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Operation(err, "failed to load enrollment")
	}
	course, err := s.courses.FindByID(ctx, enrollment.CourseID)
	if err != nil {
		return nil, appErrors.Operation(err, "failed to load course")
	}
	if !canManageCourse(course, claims) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}
	if enrollment.Status != models.EnrollmentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment is not active")
	}
	if err := s.repo.UpdateStatus(ctx, id, models.EnrollmentStatusCompleted); err != nil {
		return nil, appErrors.Operation(err, "failed to complete enrollment")
	}
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Operation(err, "failed to load enrollment detail")
	}
	return detail, nil
}

// UpdateProgress records progress on an enrollment owned by the caller.
func (s *EnrollmentService) UpdateProgress(ctx context.Context, claims *models.JWTClaims, id string, req UpdateProgressRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid progress payload")
	}
	enrollment, err := s.loadOwned(ctx, claims, id)
	if err != nil {
		return nil, err
	}
	if enrollment.Status != models.EnrollmentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment is not active")
	}
	if err := s.repo.UpdateProgress(ctx, id, req.Progress); err != nil {
		return nil, appErrors.Operation(err, "failed to update progress")
	}
	enrollment.Progress = req.Progress
	return enrollment, nil
}

func (s *EnrollmentService) resolveActor(ctx context.Context, claims *models.JWTClaims, profileID *string) (models.Actor, string, error) {
	return resolveLearner(ctx, s.profiles, claims, profileID)
}

// resolveLearner maps the caller's claims onto the learner an enrollment or
// submission belongs to. Students act as themselves; parents act through
// one of their own profiles.
func resolveLearner(ctx context.Context, profiles enrollmentProfileReader, claims *models.JWTClaims, profileID *string) (models.Actor, string, error) {
	switch claims.Role {
	case models.RoleStudent:
		if profileID != nil {
			return models.Actor{}, "", appErrors.Clone(appErrors.ErrValidation, "students cannot act through a profile")
		}
		userID := claims.UserID
		return models.Actor{StudentID: &userID}, claims.FullName, nil
	case models.RoleParent:
		if profileID == nil || *profileID == "" {
			return models.Actor{}, "", appErrors.Clone(appErrors.ErrValidation, "student_profile_id is required")
		}
		profile, err := profiles.FindByID(ctx, *profileID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return models.Actor{}, "", appErrors.Clone(appErrors.ErrNotFound, "profile not found")
			}
			return models.Actor{}, "", appErrors.Operation(err, "failed to load profile")
		}
		if profile.ParentID != claims.UserID {
			return models.Actor{}, "", appErrors.Clone(appErrors.ErrForbidden, "profile belongs to another parent")
		}
		return models.Actor{StudentProfileID: &profile.ID}, profile.FullName, nil
	default:
		return models.Actor{}, "", appErrors.Clone(appErrors.ErrForbidden, "role cannot act as a learner")
	}
}

func (s *EnrollmentService) loadOwned(ctx context.Context, claims *models.JWTClaims, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Operation(err, "failed to load enrollment")
	}
	switch {
	case claims.Role == models.RoleAdmin:
		return enrollment, nil
	case enrollment.StudentID != nil && *enrollment.StudentID == claims.UserID:
		return enrollment, nil
	case enrollment.StudentProfileID != nil && claims.Role == models.RoleParent:
		profile, err := s.profiles.FindByID(ctx, *enrollment.StudentProfileID)
		if err != nil {
			return nil, appErrors.Operation(err, "failed to load profile")
		}
		if profile.ParentID == claims.UserID {
			return enrollment, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another learner")
}

func (s *EnrollmentService) notifyInstructor(ctx context.Context, course *models.Course, learnerName string) {
	if s.notifier == nil {
		return
	}
	instructor, err := s.users.FindByID(ctx, course.InstructorID)
	if err != nil {
		s.logger.Warn("failed to load instructor for notification", zap.Error(err))
		return
	}
	s.notifier.NotifyEnrollment(instructor.Email, instructor.FullName, course.Title, learnerName)
}

func (s *EnrollmentService) recordAudit(ctx context.Context, userID, action, enrollmentID string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "enrollment",
		ResourceID: &enrollmentID,
	}); err != nil {
		s.logger.Warn("failed to record enrollment audit log", zap.Error(err))
	}
}
