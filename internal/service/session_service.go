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

type sessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	CreateBatch(ctx context.Context, sessions []models.Session) error
	FindByID(ctx context.Context, id string) (*models.Session, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Session, error)
	CountByCourse(ctx context.Context, courseID string) (int, error)
	LatestByCourse(ctx context.Context, courseID string) (*models.Session, error)
	Update(ctx context.Context, session *models.Session) error
	Delete(ctx context.Context, id string) error
}

type sessionCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// SessionConfig bounds the schedule generator.
type SessionConfig struct {
	InitialBatchSize int
	MaxIterations    int
}

// UpdateSessionRequest edits a single session occurrence.
type UpdateSessionRequest struct {
	Title           string  `json:"title" validate:"required,max=200"`
	StartsAt        string  `json:"starts_at" validate:"required"`
	DurationMinutes int     `json:"duration_minutes" validate:"required,min=5,max=600"`
	MeetingLink     *string `json:"meeting_link,omitempty" validate:"omitempty,url"`
}

// GenerateSessionsRequest asks for more sessions past the current schedule.
type GenerateSessionsRequest struct {
	Count int `json:"count" validate:"required,min=1,max=50"`
}

// CreateSessionRequest adds a single session outside the generated schedule.
type CreateSessionRequest struct {
	Title           string  `json:"title" validate:"max=200"`
	StartsAt        string  `json:"starts_at" validate:"required"`
	DurationMinutes int     `json:"duration_minutes" validate:"required,min=5,max=600"`
	MeetingLink     *string `json:"meeting_link,omitempty" validate:"omitempty,url"`
}

// SessionService turns a course's weekly schedule into concrete sessions.
type SessionService struct {
	repo      sessionRepository
	courses   sessionCourseReader
	metrics   *MetricsService
	config    SessionConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSessionService constructs SessionService.
func NewSessionService(repo sessionRepository, courses sessionCourseReader, metrics *MetricsService, config SessionConfig, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.InitialBatchSize <= 0 {
		config.InitialBatchSize = 5
	}
	if config.MaxIterations <= 0 {
		config.MaxIterations = defaultMaxIterations
	}
	return &SessionService{repo: repo, courses: courses, metrics: metrics, config: config, validator: validate, logger: logger}
}

// List returns a course's sessions in start order.
func (s *SessionService) List(ctx context.Context, courseID string) ([]models.Session, error) {
	if _, err := s.loadCourse(ctx, courseID); err != nil {
		return nil, err
	}
	sessions, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Operation(err, "failed to list sessions")
	}
	return sessions, nil
}

// GenerateInitial expands the course's weekly schedule into its first block
// of sessions. Bounded courses get every date through the end date; open
// ended courses get the initial batch. Refuses when sessions already exist
// so a retry cannot double the schedule.
func (s *SessionService) GenerateInitial(ctx context.Context, courseID string, claims *models.JWTClaims) ([]models.Session, error) {
	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !canManageCourse(course, claims) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}

	existing, err := s.repo.CountByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Operation(err, "failed to count sessions")
	}
	if existing > 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "sessions already generated for course")
	}

	instants, err := ExpandSchedule(scheduleRuleFor(course), s.config.InitialBatchSize, s.config.MaxIterations)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course schedule")
	}

	return s.persistSessions(ctx, course, instants, 1)
}

// GenerateMore appends sessions past the latest existing one for open
// ended courses. Numbering continues where the previous block stopped.
func (s *SessionService) GenerateMore(ctx context.Context, courseID string, claims *models.JWTClaims, req GenerateSessionsRequest) ([]models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generate payload")
	}
	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !canManageCourse(course, claims) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}
	if course.HasEndDate {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course schedule is bounded by its end date")
	}

	latest, err := s.repo.LatestByCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "generate the initial schedule first")
		}
		return nil, appErrors.Operation(err, "failed to load latest session")
	}
	count, err := s.repo.CountByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Operation(err, "failed to count sessions")
	}

	instants, err := ExpandScheduleFrom(scheduleRuleFor(course), latest.StartsAt, req.Count, s.config.MaxIterations)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course schedule")
	}

	return s.persistSessions(ctx, course, instants, count+1)
}

// Create adds one session outside the weekly schedule, e.g. a make-up
// class. An empty title continues the "Session N Topics" numbering.
func (s *SessionService) Create(ctx context.Context, courseID string, claims *models.JWTClaims, req CreateSessionRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !canManageCourse(course, claims) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}
	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid start time")
	}

	title := req.Title
	if title == "" {
		count, err := s.repo.CountByCourse(ctx, courseID)
		if err != nil {
			return nil, appErrors.Operation(err, "failed to count sessions")
		}
		title = fmt.Sprintf("Session %d Topics", count+1)
	}
	meetingLink := req.MeetingLink
	if meetingLink == nil {
		meetingLink = course.MeetingLink
	}

	session := &models.Session{
		CourseID:        courseID,
		Title:           title,
		StartsAt:        startsAt,
		DurationMinutes: req.DurationMinutes,
		MeetingLink:     meetingLink,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, appErrors.Operation(err, "failed to create session")
	}
	return session, nil
}

// Update edits one session occurrence.
func (s *SessionService) Update(ctx context.Context, id string, claims *models.JWTClaims, req UpdateSessionRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	session, course, err := s.loadSessionAndCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManageCourse(course, claims) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}
	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid start time")
	}
	session.Title = req.Title
	session.StartsAt = startsAt
	session.DurationMinutes = req.DurationMinutes
	session.MeetingLink = req.MeetingLink
	if err := s.repo.Update(ctx, session); err != nil {
		return nil, appErrors.Operation(err, "failed to update session")
	}
	return session, nil
}

// Delete removes one session occurrence.
func (s *SessionService) Delete(ctx context.Context, id string, claims *models.JWTClaims) error {
	_, course, err := s.loadSessionAndCourse(ctx, id)
	if err != nil {
		return err
	}
	if !canManageCourse(course, claims) {
		return appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Operation(err, "failed to delete session")
	}
	return nil
}

func (s *SessionService) persistSessions(ctx context.Context, course *models.Course, instants []time.Time, firstNumber int) ([]models.Session, error) {
	sessions := make([]models.Session, 0, len(instants))
	for i, instant := range instants {
		sessions = append(sessions, models.Session{
			CourseID:        course.ID,
			Title:           fmt.Sprintf("Session %d Topics", firstNumber+i),
			StartsAt:        instant,
			DurationMinutes: course.SessionDurationMinutes,
			MeetingLink:     course.MeetingLink,
		})
	}
	if err := s.repo.CreateBatch(ctx, sessions); err != nil {
		return nil, appErrors.Operation(err, "failed to persist sessions")
	}
	if s.metrics != nil {
		s.metrics.AddSessionsCreated(len(sessions))
	}
	s.logger.Info("sessions generated",
		zap.String("course_id", course.ID),
		zap.Int("count", len(sessions)),
		zap.Int("first_number", firstNumber))
	return sessions, nil
}

func (s *SessionService) loadCourse(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Operation(err, "failed to load course")
	}
	return course, nil
}

func (s *SessionService) loadSessionAndCourse(ctx context.Context, id string) (*models.Session, *models.Course, error) {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, nil, appErrors.Operation(err, "failed to load session")
	}
	course, err := s.loadCourse(ctx, session.CourseID)
	if err != nil {
		return nil, nil, err
	}
	return session, course, nil
}

func scheduleRuleFor(course *models.Course) ScheduleRule {
	return ScheduleRule{
		StartDate:       course.StartDate,
		EndDate:         course.EndDate,
		HasEndDate:      course.HasEndDate,
		SelectedDays:    course.SelectedDays,
		SessionTime:     course.SessionTime,
		DurationMinutes: course.SessionDurationMinutes,
	}
}
