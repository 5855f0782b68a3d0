package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/coursehub/coursehub-api/internal/models"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
)

type courseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindDetailByID(ctx context.Context, id string) (*models.CourseDetail, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error)
	Update(ctx context.Context, course *models.Course) error
	UpdatePublished(ctx context.Context, id string, published bool) error
	Delete(ctx context.Context, id string) error
}

type courseEnrollmentCounter interface {
	CountActiveByCourse(ctx context.Context, courseID string) (int, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CourseRequest carries the writable course fields.
type CourseRequest struct {
	Title                  string   `json:"title" validate:"required,max=200"`
	Description            string   `json:"description" validate:"max=10000"`
	Category               string   `json:"category" validate:"required,max=100"`
	EnrollmentLimit        *int     `json:"enrollment_limit,omitempty" validate:"omitempty,min=1"`
	StartDate              string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate                *string  `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	HasEndDate             bool     `json:"has_end_date"`
	SelectedDays           []string `json:"selected_days" validate:"dive,oneof=monday tuesday wednesday thursday friday saturday sunday Monday Tuesday Wednesday Thursday Friday Saturday Sunday"`
	SessionTime            string   `json:"session_time" validate:"required"`
	SessionDurationMinutes int      `json:"session_duration_minutes" validate:"required,min=5,max=600"`
	MeetingLink            *string  `json:"meeting_link,omitempty" validate:"omitempty,url"`
}

// CourseService owns the catalog and the instructor course CRUD.
type CourseService struct {
	repo        courseRepository
	enrollments courseEnrollmentCounter
	cache       *CacheService
	audit       auditLogger
	cacheTTL    time.Duration
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCourseService constructs CourseService.
func NewCourseService(repo courseRepository, enrollments courseEnrollmentCounter, cache *CacheService, audit auditLogger, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, enrollments: enrollments, cache: cache, audit: audit, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

const catalogCachePrefix = "catalog:"

func catalogCacheKey(filter models.CourseFilter) string {
	return fmt.Sprintf("%sv1:%s:%s:%s:%d:%d:%s:%s",
		catalogCachePrefix, filter.Category, filter.Search, filter.InstructorID,
		filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)
}

type catalogPage struct {
	Courses []models.CourseDetail `json:"courses"`
	Total   int                   `json:"total"`
}

// Browse lists published courses for the public catalog, served from cache
// when possible.
func (s *CourseService) Browse(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, *models.Pagination, error) {
	filter.PublishedOnly = true
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	key := catalogCacheKey(filter)
	var cached catalogPage
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached.Courses, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: cached.Total}, nil
	}

	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Operation(err, "failed to list courses")
	}
	if err := s.cache.Set(ctx, key, catalogPage{Courses: courses, Total: total}, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache catalog page", zap.Error(err))
	}
	return courses, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// ListByInstructor lists an instructor's own courses, drafts included.
func (s *CourseService) ListByInstructor(ctx context.Context, instructorID string, filter models.CourseFilter) ([]models.CourseDetail, *models.Pagination, error) {
	filter.InstructorID = instructorID
	filter.PublishedOnly = false
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Operation(err, "failed to list courses")
	}
	return courses, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns course detail. Unpublished courses are only visible to their
// owner and admins.
func (s *CourseService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.CourseDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Operation(err, "failed to load course")
	}
	if !detail.Published && !canManageCourse(&detail.Course, claims) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	return detail, nil
}

// Create registers a draft course owned by the calling instructor.
func (s *CourseService) Create(ctx context.Context, instructorID string, req CourseRequest) (*models.CourseDetail, error) {
	course, err := s.buildCourse(instructorID, req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Operation(err, "failed to create course")
	}
	s.recordAudit(ctx, instructorID, models.AuditActionCourseCreate, course.ID)
	detail, err := s.repo.FindDetailByID(ctx, course.ID)
	if err != nil {
		return nil, appErrors.Operation(err, "failed to load course detail")
	}
	return detail, nil
}

// Update mutates a course owned by the caller.
func (s *CourseService) Update(ctx context.Context, id string, claims *models.JWTClaims, req CourseRequest) (*models.CourseDetail, error) {
	existing, err := s.loadOwned(ctx, id, claims)
	if err != nil {
		return nil, err
	}
	course, err := s.buildCourse(existing.InstructorID, req)
	if err != nil {
		return nil, err
	}
	course.ID = existing.ID
	course.Published = existing.Published
	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Operation(err, "failed to update course")
	}
	s.invalidateCatalog(ctx)
	s.recordAudit(ctx, claims.UserID, models.AuditActionCourseUpdate, id)
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Operation(err, "failed to load course detail")
	}
	return detail, nil
}

// SetPublished publishes or unpublishes a course.
func (s *CourseService) SetPublished(ctx context.Context, id string, claims *models.JWTClaims, published bool) (*models.CourseDetail, error) {
	if _, err := s.loadOwned(ctx, id, claims); err != nil {
		return nil, err
	}
	if err := s.repo.UpdatePublished(ctx, id, published); err != nil {
		return nil, appErrors.Operation(err, "failed to update course")
	}
	s.invalidateCatalog(ctx)
	s.recordAudit(ctx, claims.UserID, models.AuditActionCoursePublish, id)
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Operation(err, "failed to load course detail")
	}
	return detail, nil
}

// Delete removes a course. Courses with a non-dropped enrollment are kept.
func (s *CourseService) Delete(ctx context.Context, id string, claims *models.JWTClaims) error {
	if _, err := s.loadOwned(ctx, id, claims); err != nil {
		return err
	}
	active, err := s.enrollments.CountActiveByCourse(ctx, id)
	if err != nil {
		return appErrors.Operation(err, "failed to count enrollments")
	}
	if active > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "course has active enrollments")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Operation(err, "failed to delete course")
	}
	s.invalidateCatalog(ctx)
	s.recordAudit(ctx, claims.UserID, models.AuditActionCourseDelete, id)
	return nil
}

func (s *CourseService) buildCourse(instructorID string, req CourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if _, _, err := parseSessionTime(req.SessionTime); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session time")
	}
	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid start date")
	}
	var endDate *time.Time
	if req.HasEndDate {
		if req.EndDate == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "end date required when has_end_date is set")
		}
		parsed, err := time.Parse("2006-01-02", *req.EndDate)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid end date")
		}
		if parsed.Before(startDate) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "end date precedes start date")
		}
		endDate = &parsed
	}
	return &models.Course{
		InstructorID:           instructorID,
		Title:                  req.Title,
		Description:            req.Description,
		Category:               req.Category,
		EnrollmentLimit:        req.EnrollmentLimit,
		StartDate:              startDate,
		EndDate:                endDate,
		HasEndDate:             req.HasEndDate,
		SelectedDays:           req.SelectedDays,
		SessionTime:            req.SessionTime,
		SessionDurationMinutes: req.SessionDurationMinutes,
		MeetingLink:            req.MeetingLink,
	}, nil
}

func (s *CourseService) loadOwned(ctx context.Context, id string, claims *models.JWTClaims) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Operation(err, "failed to load course")
	}
	if !canManageCourse(course, claims) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}
	return course, nil
}

func (s *CourseService) invalidateCatalog(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, catalogCachePrefix+"*"); err != nil {
		s.logger.Warn("failed to invalidate catalog cache", zap.Error(err))
	}
}

func (s *CourseService) recordAudit(ctx context.Context, userID, action, courseID string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "course",
		ResourceID: &courseID,
	}); err != nil {
		s.logger.Warn("failed to record course audit log", zap.Error(err))
	}
}

type courseLinkReader interface {
	HasActiveLink(ctx context.Context, courseID, userID string) (bool, error)
}

// requireCourseLink admits callers holding a non-dropped enrollment in the
// course, directly or through a parented profile.
func requireCourseLink(ctx context.Context, enrollments courseLinkReader, courseID string, claims *models.JWTClaims) error {
	if claims == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	linked, err := enrollments.HasActiveLink(ctx, courseID, claims.UserID)
	if err != nil {
		return appErrors.Operation(err, "failed to check enrollment")
	}
	if !linked {
		return appErrors.Clone(appErrors.ErrForbidden, "not enrolled in course")
	}
	return nil
}

func canManageCourse(course *models.Course, claims *models.JWTClaims) bool {
	if claims == nil {
		return false
	}
	if claims.Role == models.RoleAdmin {
		return true
	}
	return claims.Role == models.RoleInstructor && course.InstructorID == claims.UserID
}
