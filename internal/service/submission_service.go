package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/coursehub/coursehub-api/internal/models"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
	"github.com/coursehub/coursehub-api/pkg/storage"
)

type submissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	FindByID(ctx context.Context, id string) (*models.Submission, error)
	FindByHomeworkAndActor(ctx context.Context, homeworkID string, actor models.Actor) (*models.Submission, error)
	ListByHomework(ctx context.Context, homeworkID string) ([]models.SubmissionDetail, error)
	UpdateContent(ctx context.Context, id, content string, fileKey *string) error
	Grade(ctx context.Context, id string, grade int, feedback string) error
}

type submissionHomeworkReader interface {
	FindByID(ctx context.Context, id string) (*models.Homework, error)
}

type submissionEnrollmentReader interface {
	FindByCourseAndActor(ctx context.Context, courseID string, actor models.Actor) (*models.Enrollment, error)
}

type gradeNotifier interface {
	NotifyGrade(email, name, homeworkTitle string, grade int)
}

type fileLinkSigner interface {
	Generate(recordID, key string) (string, time.Time, error)
	Parse(token string) (recordID, key string, expiresAt time.Time, err error)
}

type submissionFileStore interface {
	SaveStream(key string, r io.Reader) (string, error)
	Promote(key, destPrefix string) (string, error)
	Open(key string) (*os.File, error)
}

// Staged uploads live under this prefix until Submit promotes them; a
// janitor reaps the ones that were never attached.
const submissionStagingPrefix = "staging/submissions"

// SubmitRequest hands in an answer for a homework.
type SubmitRequest struct {
	Content          string  `json:"content" validate:"max=50000"`
	FileKey          *string `json:"file_key,omitempty"`
	StudentProfileID *string `json:"student_profile_id,omitempty"`
}

// GradeRequest records a grade and feedback on a submission.
type GradeRequest struct {
	Grade    int    `json:"grade" validate:"min=0,max=100"`
	Feedback string `json:"feedback" validate:"max=10000"`
}

// SubmissionService manages homework hand-ins and grading.
type SubmissionService struct {
	repo        submissionRepository
	homeworks   submissionHomeworkReader
	courses     sessionCourseReader
	enrollments submissionEnrollmentReader
	profiles    enrollmentProfileReader
	users       instructorReader
	notifier    gradeNotifier
	audit       auditLogger
	signer      fileLinkSigner
	files       submissionFileStore
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewSubmissionService constructs SubmissionService.
func NewSubmissionService(repo submissionRepository, homeworks submissionHomeworkReader, courses sessionCourseReader, enrollments submissionEnrollmentReader, profiles enrollmentProfileReader, users instructorReader, notifier gradeNotifier, audit auditLogger, signer fileLinkSigner, files submissionFileStore, validate *validator.Validate, logger *zap.Logger) *SubmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{repo: repo, homeworks: homeworks, courses: courses, enrollments: enrollments, profiles: profiles, users: users, notifier: notifier, audit: audit, signer: signer, files: files, validator: validate, logger: logger}
}

// Submit hands in or replaces the learner's answer. Resubmission overwrites
// the existing row until it is graded.
func (s *SubmissionService) Submit(ctx context.Context, homeworkID string, claims *models.JWTClaims, req SubmitRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}

	homework, err := s.loadHomework(ctx, homeworkID)
	if err != nil {
		return nil, err
	}
	if !homework.Published {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "homework not found")
	}
	if homework.SubmissionType == models.SubmissionTypeFile && req.FileKey == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file upload required for this homework")
	}

	actor, _, err := resolveLearner(ctx, s.profiles, claims, req.StudentProfileID)
	if err != nil {
		return nil, err
	}
	if err := s.requireEnrollment(ctx, homework.CourseID, actor); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByHomeworkAndActor(ctx, homeworkID, actor)
	switch {
	case err == nil:
		// Reject before promoting so a refused resubmit leaves the staged
		// file where the cleanup sweep can still reach it.
		if existing.Status == models.SubmissionStatusGraded {
			return nil, appErrors.Clone(appErrors.ErrConflict, "submission already graded")
		}
		fileKey, err := s.promoteStagedFile(req.FileKey)
		if err != nil {
			return nil, err
		}
		if err := s.repo.UpdateContent(ctx, existing.ID, req.Content, fileKey); err != nil {
			return nil, appErrors.Operation(err, "failed to update submission")
		}
		return s.reload(ctx, existing.ID)
	case errors.Is(err, sql.ErrNoRows):
		fileKey, err := s.promoteStagedFile(req.FileKey)
		if err != nil {
			return nil, err
		}
		submission := &models.Submission{
			HomeworkID:       homeworkID,
			StudentID:        actor.StudentID,
			StudentProfileID: actor.StudentProfileID,
			Content:          req.Content,
			FileKey:          fileKey,
		}
		if err := s.repo.Create(ctx, submission); err != nil {
			return nil, appErrors.Operation(err, "failed to create submission")
		}
		return submission, nil
	default:
		return nil, appErrors.Operation(err, "failed to check submission")
	}
}

// GetMine returns the caller's submission for a homework, if any.
func (s *SubmissionService) GetMine(ctx context.Context, homeworkID string, claims *models.JWTClaims, profileID *string) (*models.Submission, error) {
	actor, _, err := resolveLearner(ctx, s.profiles, claims, profileID)
	if err != nil {
		return nil, err
	}
	submission, err := s.repo.FindByHomeworkAndActor(ctx, homeworkID, actor)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Operation(err, "failed to load submission")
	}
	return submission, nil
}

// ListByHomework returns all submissions of a homework for its instructor.
func (s *SubmissionService) ListByHomework(ctx context.Context, homeworkID string, claims *models.JWTClaims) ([]models.SubmissionDetail, error) {
	homework, err := s.loadHomework(ctx, homeworkID)
	if err != nil {
		return nil, err
	}
	course, err := s.loadCourse(ctx, homework.CourseID)
	if err != nil {
		return nil, err
	}
	if !canManageCourse(course, claims) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}
	submissions, err := s.repo.ListByHomework(ctx, homeworkID)
	if err != nil {
		return nil, appErrors.Operation(err, "failed to list submissions")
	}
	return submissions, nil
}

// Grade records grade and feedback and mails the learner's account holder.
func (s *SubmissionService) Grade(ctx context.Context, id string, claims *models.JWTClaims, req GradeRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}

	submission, err := s.reload(ctx, id)
	if err != nil {
		return nil, err
	}
	homework, err := s.loadHomework(ctx, submission.HomeworkID)
	if err != nil {
		return nil, err
	}
	course, err := s.loadCourse(ctx, homework.CourseID)
	if err != nil {
		return nil, err
	}
	if !canManageCourse(course, claims) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}

	if err := s.repo.Grade(ctx, id, req.Grade, req.Feedback); err != nil {
		return nil, appErrors.Operation(err, "failed to grade submission")
	}
	s.notifyLearner(ctx, submission, homework.Title, req.Grade)
	s.recordAudit(ctx, claims.UserID, id)
	return s.reload(ctx, id)
}

// UploadFile stages a submission attachment and returns its storage key.
// The key only becomes permanent once a Submit call references it; the
// staging janitor reaps abandoned uploads.
func (s *SubmissionService) UploadFile(ctx context.Context, claims *models.JWTClaims, fileName string, body io.Reader) (string, error) {
	if s.files == nil {
		return "", appErrors.Clone(appErrors.ErrOperation, "file uploads not configured")
	}
	if claims == nil {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	if fileName == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "file name required")
	}

	key := storage.GenerateKey(submissionStagingPrefix, fileName)
	stored, err := s.files.SaveStream(key, body)
	if err != nil {
		return "", appErrors.Operation(err, "failed to store uploaded file")
	}
	return stored, nil
}

// promoteStagedFile moves a staged upload into the permanent submissions
// prefix. Keys outside the staging area pass through untouched so graded
// work keeps its existing file.
func (s *SubmissionService) promoteStagedFile(key *string) (*string, error) {
	if key == nil || s.files == nil || !strings.HasPrefix(*key, submissionStagingPrefix+"/") {
		return key, nil
	}
	promoted, err := s.files.Promote(*key, "submissions")
	if err != nil {
		return nil, appErrors.Operation(err, "failed to store submission file")
	}
	return &promoted, nil
}

// FileLink issues a time-limited download token for the submission's
// uploaded file. The course instructor, an admin, and the learner who owns
// the submission may request one.
func (s *SubmissionService) FileLink(ctx context.Context, id string, claims *models.JWTClaims) (string, time.Time, error) {
	if s.signer == nil {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrOperation, "file downloads not configured")
	}
	if claims == nil {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}

	submission, err := s.reload(ctx, id)
	if err != nil {
		return "", time.Time{}, err
	}
	if submission.FileKey == nil {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrNotFound, "submission has no uploaded file")
	}
	if err := s.authorizeFileAccess(ctx, submission, claims); err != nil {
		return "", time.Time{}, err
	}

	token, expiresAt, err := s.signer.Generate(submission.ID, *submission.FileKey)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	return token, expiresAt, nil
}

// OpenFile redeems a download token and opens the stored file. The token is
// the sole credential, so links can be handed to a browser download without
// an Authorization header. A token stops working once the learner replaces
// the uploaded file.
func (s *SubmissionService) OpenFile(ctx context.Context, token string) (*os.File, string, error) {
	if s.signer == nil || s.files == nil {
		return nil, "", appErrors.Clone(appErrors.ErrOperation, "file downloads not configured")
	}

	submissionID, key, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download token")
	}
	submission, err := s.reload(ctx, submissionID)
	if err != nil {
		return nil, "", err
	}
	if submission.FileKey == nil || *submission.FileKey != key {
		return nil, "", appErrors.Clone(appErrors.ErrUnauthorized, "download token no longer valid")
	}

	file, err := s.files.Open(key)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "file not found")
	}
	return file, key, nil
}

func (s *SubmissionService) authorizeFileAccess(ctx context.Context, submission *models.Submission, claims *models.JWTClaims) error {
	homework, err := s.loadHomework(ctx, submission.HomeworkID)
	if err != nil {
		return err
	}
	course, err := s.loadCourse(ctx, homework.CourseID)
	if err != nil {
		return err
	}
	if canManageCourse(course, claims) {
		return nil
	}

	switch claims.Role {
	case models.RoleStudent:
		if submission.StudentID != nil && *submission.StudentID == claims.UserID {
			return nil
		}
	case models.RoleParent:
		if submission.StudentProfileID != nil {
			profile, err := s.profiles.FindByID(ctx, *submission.StudentProfileID)
			if err == nil && profile.ParentID == claims.UserID {
				return nil
			}
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "submission belongs to another learner")
}

func (s *SubmissionService) requireEnrollment(ctx context.Context, courseID string, actor models.Actor) error {
	enrollment, err := s.enrollments.FindByCourseAndActor(ctx, courseID, actor)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrForbidden, "not enrolled in course")
		}
		return appErrors.Operation(err, "failed to check enrollment")
	}
	if enrollment.Status == models.EnrollmentStatusDropped {
		return appErrors.Clone(appErrors.ErrForbidden, "not enrolled in course")
	}
	return nil
}

// notifyLearner mails the account holder: the student themselves, or the
// parent for a managed profile.
func (s *SubmissionService) notifyLearner(ctx context.Context, submission *models.Submission, homeworkTitle string, grade int) {
	if s.notifier == nil {
		return
	}
	var accountID string
	switch {
	case submission.StudentID != nil:
		accountID = *submission.StudentID
	case submission.StudentProfileID != nil:
		profile, err := s.profiles.FindByID(ctx, *submission.StudentProfileID)
		if err != nil {
			s.logger.Warn("failed to load profile for grade notification", zap.Error(err))
			return
		}
		accountID = profile.ParentID
	default:
		return
	}
	user, err := s.users.FindByID(ctx, accountID)
	if err != nil {
		s.logger.Warn("failed to load user for grade notification", zap.Error(err))
		return
	}
	s.notifier.NotifyGrade(user.Email, user.FullName, homeworkTitle, grade)
}

func (s *SubmissionService) loadHomework(ctx context.Context, id string) (*models.Homework, error) {
	homework, err := s.homeworks.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "homework not found")
		}
		return nil, appErrors.Operation(err, "failed to load homework")
	}
	return homework, nil
}

func (s *SubmissionService) loadCourse(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Operation(err, "failed to load course")
	}
	return course, nil
}

func (s *SubmissionService) reload(ctx context.Context, id string) (*models.Submission, error) {
	submission, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Operation(err, "failed to load submission")
	}
	return submission, nil
}

func (s *SubmissionService) recordAudit(ctx context.Context, userID, submissionID string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionGrade,
		Resource:   "submission",
		ResourceID: &submissionID,
	}); err != nil {
		s.logger.Warn("failed to record grade audit log", zap.Error(err))
	}
}
