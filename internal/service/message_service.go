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

type messageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	ListThread(ctx context.Context, courseID, userA, userB string) ([]models.MessageDetail, error)
	MarkThreadRead(ctx context.Context, courseID, recipientID, senderID string) error
	CountUnread(ctx context.Context, recipientID string) (int, error)
}

type messageUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// SendMessageRequest posts a message in a course thread.
type SendMessageRequest struct {
	CourseID    string `json:"course_id" validate:"required"`
	RecipientID string `json:"recipient_id" validate:"required"`
	Body        string `json:"body" validate:"required,max=10000"`
}

// UnreadCount is the polled badge payload.
type UnreadCount struct {
	Count int `json:"count"`
}

// MessageService provides course-scoped direct messaging with a polled
// unread counter.
type MessageService struct {
	repo        messageRepository
	courses     sessionCourseReader
	users       messageUserReader
	enrollments courseLinkReader
	cache       *CacheService
	unreadTTL   time.Duration
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewMessageService constructs MessageService.
func NewMessageService(repo messageRepository, courses sessionCourseReader, users messageUserReader, enrollments courseLinkReader, cache *CacheService, unreadTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *MessageService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if unreadTTL <= 0 {
		unreadTTL = 30 * time.Second
	}
	return &MessageService{repo: repo, courses: courses, users: users, enrollments: enrollments, cache: cache, unreadTTL: unreadTTL, validator: validate, logger: logger}
}

func unreadCacheKey(userID string) string {
	return fmt.Sprintf("unread:%s", userID)
}

// Send posts a message. One side of the thread must be the course's
// instructor and the other side must hold a non-dropped enrollment in the
// course, directly or through a parented profile.
func (s *MessageService) Send(ctx context.Context, claims *models.JWTClaims, req SendMessageRequest) (*models.Message, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid message payload")
	}
	if req.RecipientID == claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot message yourself")
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Operation(err, "failed to load course")
	}
	if course.InstructorID != claims.UserID && course.InstructorID != req.RecipientID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "thread must include the course instructor")
	}
	if _, err := s.users.FindByID(ctx, req.RecipientID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "recipient not found")
		}
		return nil, appErrors.Operation(err, "failed to load recipient")
	}

	learnerID := claims.UserID
	if course.InstructorID == claims.UserID {
		learnerID = req.RecipientID
	}
	linked, err := s.enrollments.HasActiveLink(ctx, req.CourseID, learnerID)
	if err != nil {
		return nil, appErrors.Operation(err, "failed to check enrollment")
	}
	if !linked {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not enrolled in course")
	}

	message := &models.Message{
		CourseID:    req.CourseID,
		SenderID:    claims.UserID,
		RecipientID: req.RecipientID,
		Body:        req.Body,
	}
	if err := s.repo.Create(ctx, message); err != nil {
		return nil, appErrors.Operation(err, "failed to send message")
	}

	// the recipient's badge is stale until the cached count expires
	if err := s.cache.Invalidate(ctx, unreadCacheKey(req.RecipientID)); err != nil {
		s.logger.Warn("failed to invalidate unread counter", zap.Error(err))
	}
	return message, nil
}

// Thread returns the caller's conversation with another user in a course
// and marks the incoming side read.
func (s *MessageService) Thread(ctx context.Context, claims *models.JWTClaims, courseID, otherID string) ([]models.MessageDetail, error) {
	messages, err := s.repo.ListThread(ctx, courseID, claims.UserID, otherID)
	if err != nil {
		return nil, appErrors.Operation(err, "failed to load thread")
	}
	if err := s.repo.MarkThreadRead(ctx, courseID, claims.UserID, otherID); err != nil {
		s.logger.Warn("failed to mark thread read", zap.Error(err))
	}
	if err := s.cache.Invalidate(ctx, unreadCacheKey(claims.UserID)); err != nil {
		s.logger.Warn("failed to invalidate unread counter", zap.Error(err))
	}
	return messages, nil
}

// Unread returns the caller's unread message count. The count is cached
// briefly since clients poll it.
func (s *MessageService) Unread(ctx context.Context, userID string) (*UnreadCount, error) {
	key := unreadCacheKey(userID)
	var cached UnreadCount
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, appErrors.Operation(err, "failed to count unread messages")
	}
	result := &UnreadCount{Count: count}
	if err := s.cache.Set(ctx, key, result, s.unreadTTL); err != nil {
		s.logger.Warn("failed to cache unread counter", zap.Error(err))
	}
	return result, nil
}
