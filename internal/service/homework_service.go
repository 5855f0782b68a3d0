package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/coursehub/coursehub-api/internal/models"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
)

type homeworkRepository interface {
	Create(ctx context.Context, homework *models.Homework) error
	FindByID(ctx context.Context, id string) (*models.Homework, error)
	ListByCourse(ctx context.Context, courseID string, publishedOnly bool) ([]models.Homework, error)
	Update(ctx context.Context, homework *models.Homework) error
	Delete(ctx context.Context, id string) error
}

// HomeworkRequest carries the writable homework fields.
type HomeworkRequest struct {
	Title          string  `json:"title" validate:"required,max=200"`
	Description    string  `json:"description" validate:"max=10000"`
	DueDate        *string `json:"due_date,omitempty"`
	SubmissionType string  `json:"submission_type" validate:"required,oneof=text file checkmark"`
	Published      bool    `json:"published"`
}

// HomeworkService manages course assignments.
type HomeworkService struct {
	repo        homeworkRepository
	courses     sessionCourseReader
	enrollments courseLinkReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewHomeworkService constructs HomeworkService.
func NewHomeworkService(repo homeworkRepository, courses sessionCourseReader, enrollments courseLinkReader, validate *validator.Validate, logger *zap.Logger) *HomeworkService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HomeworkService{repo: repo, courses: courses, enrollments: enrollments, validator: validate, logger: logger}
}

// ListByCourse returns assignments for a course. The owner sees everything;
// anyone else must hold a non-dropped enrollment and only sees published
// ones.
func (s *HomeworkService) ListByCourse(ctx context.Context, courseID string, claims *models.JWTClaims) ([]models.Homework, error) {
	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	publishedOnly := !canManageCourse(course, claims)
	if publishedOnly {
		if err := requireCourseLink(ctx, s.enrollments, courseID, claims); err != nil {
			return nil, err
		}
	}
	homeworks, err := s.repo.ListByCourse(ctx, courseID, publishedOnly)
	if err != nil {
		return nil, appErrors.Operation(err, "failed to list homeworks")
	}
	return homeworks, nil
}

// Get returns one assignment. Unpublished assignments are owner-only.
func (s *HomeworkService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Homework, error) {
	homework, course, err := s.loadWithCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	if !homework.Published && !canManageCourse(course, claims) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "homework not found")
	}
	return homework, nil
}

// Create adds an assignment to a course owned by the caller.
func (s *HomeworkService) Create(ctx context.Context, courseID string, claims *models.JWTClaims, req HomeworkRequest) (*models.Homework, error) {
	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !canManageCourse(course, claims) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}
	homework, err := s.buildHomework(courseID, req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, homework); err != nil {
		return nil, appErrors.Operation(err, "failed to create homework")
	}
	return homework, nil
}

// Update mutates an assignment owned by the caller.
func (s *HomeworkService) Update(ctx context.Context, id string, claims *models.JWTClaims, req HomeworkRequest) (*models.Homework, error) {
	existing, course, err := s.loadWithCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManageCourse(course, claims) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}
	homework, err := s.buildHomework(existing.CourseID, req)
	if err != nil {
		return nil, err
	}
	homework.ID = existing.ID
	homework.CreatedAt = existing.CreatedAt
	if err := s.repo.Update(ctx, homework); err != nil {
		return nil, appErrors.Operation(err, "failed to update homework")
	}
	return homework, nil
}

// Delete removes an assignment owned by the caller.
func (s *HomeworkService) Delete(ctx context.Context, id string, claims *models.JWTClaims) error {
	_, course, err := s.loadWithCourse(ctx, id)
	if err != nil {
		return err
	}
	if !canManageCourse(course, claims) {
		return appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Operation(err, "failed to delete homework")
	}
	return nil
}

func (s *HomeworkService) buildHomework(courseID string, req HomeworkRequest) (*models.Homework, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid homework payload")
	}
	var dueDate *time.Time
	if req.DueDate != nil && *req.DueDate != "" {
		parsed, err := time.Parse(time.RFC3339, *req.DueDate)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid due date")
		}
		dueDate = &parsed
	}
	return &models.Homework{
		CourseID:       courseID,
		Title:          req.Title,
		Description:    req.Description,
		DueDate:        dueDate,
		SubmissionType: models.SubmissionType(req.SubmissionType),
		Published:      req.Published,
	}, nil
}

func (s *HomeworkService) loadCourse(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Operation(err, "failed to load course")
	}
	return course, nil
}

func (s *HomeworkService) loadWithCourse(ctx context.Context, id string) (*models.Homework, *models.Course, error) {
	homework, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "homework not found")
		}
		return nil, nil, appErrors.Operation(err, "failed to load homework")
	}
	course, err := s.loadCourse(ctx, homework.CourseID)
	if err != nil {
		return nil, nil, err
	}
	return homework, course, nil
}
