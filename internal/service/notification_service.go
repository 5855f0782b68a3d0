package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coursehub/coursehub-api/pkg/jobs"
	"github.com/coursehub/coursehub-api/pkg/mail"
)

// NotificationService turns domain events into queued emails. Enqueueing
// never blocks the calling request; delivery and retries happen on the
// queue's workers.
type NotificationService struct {
	queue   *jobs.Queue
	mailer  mail.Mailer
	metrics *MetricsService
	baseURL string
	logger  *zap.Logger
}

// NewNotificationService builds the service and its delivery queue.
func NewNotificationService(mailer mail.Mailer, metrics *MetricsService, baseURL string, cfg jobs.QueueConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{mailer: mailer, metrics: metrics, baseURL: baseURL, logger: logger}
	cfg.Logger = logger
	s.queue = jobs.NewQueue("notifications", s.deliver, cfg)
	return s
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the delivery workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// NotifyEnrollment mails the instructor about a new learner.
func (s *NotificationService) NotifyEnrollment(instructorEmail, instructorName, courseTitle, learnerName string) {
	s.enqueue("enrollment", mail.Message{
		ToName:    instructorName,
		ToEmail:   instructorEmail,
		Subject:   fmt.Sprintf("New enrollment in %s", courseTitle),
		PlainBody: fmt.Sprintf("Hi %s,\n\n%s just enrolled in %s.\n", instructorName, learnerName, courseTitle),
	})
}

// NotifyGrade mails the learner's account holder about a graded submission.
func (s *NotificationService) NotifyGrade(email, name, homeworkTitle string, grade int) {
	s.enqueue("grade", mail.Message{
		ToName:    name,
		ToEmail:   email,
		Subject:   fmt.Sprintf("Your submission for %q was graded", homeworkTitle),
		PlainBody: fmt.Sprintf("Hi %s,\n\nYour submission for %q received a grade of %d.\n", name, homeworkTitle, grade),
	})
}

// NotifyPasswordReset mails a single-use reset link.
func (s *NotificationService) NotifyPasswordReset(email, fullName, token string) {
	s.enqueue("password_reset", mail.Message{
		ToName:    fullName,
		ToEmail:   email,
		Subject:   "Password reset request",
		PlainBody: fmt.Sprintf("Hi %s,\n\nReset your password here: %s/reset-password?token=%s\n\nThe link expires shortly. If you did not request this, ignore this email.\n", fullName, s.baseURL, token),
	})
}

func (s *NotificationService) enqueue(kind string, msg mail.Message) {
	if s.mailer == nil {
		return
	}
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    kind,
		Payload: msg,
	})
	if err != nil {
		s.logger.Warn("failed to enqueue notification", zap.String("type", kind), zap.Error(err))
		return
	}
	if s.metrics != nil {
		s.metrics.IncMailEnqueued()
	}
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(mail.Message)
	if !ok {
		s.logger.Error("notification job carries unexpected payload", zap.String("job_id", job.ID))
		return nil
	}
	return s.mailer.Send(ctx, msg)
}
