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

type ratingRepository interface {
	Upsert(ctx context.Context, rating *models.Rating) error
	FindByCourseAndStudent(ctx context.Context, courseID, studentID string) (*models.Rating, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.RatingDetail, error)
	Summary(ctx context.Context, courseID string) (*models.RatingSummary, error)
	Delete(ctx context.Context, id string) error
}

// RateRequest reviews a course with one to five stars.
type RateRequest struct {
	Stars   int    `json:"stars" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=5000"`
}

// RatingService manages course reviews. Only enrolled student accounts may
// rate; a second rating replaces the first.
type RatingService struct {
	repo        ratingRepository
	courses     sessionCourseReader
	enrollments submissionEnrollmentReader
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewRatingService constructs RatingService.
func NewRatingService(repo ratingRepository, courses sessionCourseReader, enrollments submissionEnrollmentReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *RatingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RatingService{repo: repo, courses: courses, enrollments: enrollments, cache: cache, validator: validate, logger: logger}
}

// Rate creates or replaces the caller's review of a course.
func (s *RatingService) Rate(ctx context.Context, courseID string, claims *models.JWTClaims, req RateRequest) (*models.Rating, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rating payload")
	}
	if claims.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can rate courses")
	}
	if _, err := s.loadCourse(ctx, courseID); err != nil {
		return nil, err
	}

	studentID := claims.UserID
	enrollment, err := s.enrollments.FindByCourseAndActor(ctx, courseID, models.Actor{StudentID: &studentID})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "not enrolled in course")
		}
		return nil, appErrors.Operation(err, "failed to check enrollment")
	}
	if enrollment.Status == models.EnrollmentStatusDropped {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not enrolled in course")
	}

	rating := &models.Rating{
		CourseID:  courseID,
		StudentID: studentID,
		Stars:     req.Stars,
		Comment:   req.Comment,
	}
	if err := s.repo.Upsert(ctx, rating); err != nil {
		return nil, appErrors.Operation(err, "failed to save rating")
	}

	// rating averages surface on catalog cards
	if err := s.cache.Invalidate(ctx, catalogCachePrefix+"*"); err != nil {
		s.logger.Warn("failed to invalidate catalog cache", zap.Error(err))
	}

	saved, err := s.repo.FindByCourseAndStudent(ctx, courseID, studentID)
	if err != nil {
		return nil, appErrors.Operation(err, "failed to load rating")
	}
	return saved, nil
}

// ListByCourse returns all reviews of a course.
func (s *RatingService) ListByCourse(ctx context.Context, courseID string) ([]models.RatingDetail, error) {
	if _, err := s.loadCourse(ctx, courseID); err != nil {
		return nil, err
	}
	ratings, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Operation(err, "failed to list ratings")
	}
	return ratings, nil
}

// Summary returns the average and count for a course.
func (s *RatingService) Summary(ctx context.Context, courseID string) (*models.RatingSummary, error) {
	if _, err := s.loadCourse(ctx, courseID); err != nil {
		return nil, err
	}
	summary, err := s.repo.Summary(ctx, courseID)
	if err != nil {
		return nil, appErrors.Operation(err, "failed to load rating summary")
	}
	return summary, nil
}

// Delete removes the caller's own rating, or any rating for admins.
func (s *RatingService) Delete(ctx context.Context, courseID string, claims *models.JWTClaims) error {
	rating, err := s.repo.FindByCourseAndStudent(ctx, courseID, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "rating not found")
		}
		return appErrors.Operation(err, "failed to load rating")
	}
	if err := s.repo.Delete(ctx, rating.ID); err != nil {
		return appErrors.Operation(err, "failed to delete rating")
	}
	if err := s.cache.Invalidate(ctx, catalogCachePrefix+"*"); err != nil {
		s.logger.Warn("failed to invalidate catalog cache", zap.Error(err))
	}
	return nil
}

func (s *RatingService) loadCourse(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Operation(err, "failed to load course")
	}
	return course, nil
}
