package service

import (
	"context"
	"database/sql"
	"errors"
	"io"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/coursehub/coursehub-api/internal/models"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
	"github.com/coursehub/coursehub-api/pkg/storage"
)

type resourceRepository interface {
	Create(ctx context.Context, resource *models.Resource) error
	FindByID(ctx context.Context, id string) (*models.Resource, error)
	ListByCourse(ctx context.Context, courseID string, visibleOnly bool) ([]models.Resource, error)
	Update(ctx context.Context, resource *models.Resource) error
	Delete(ctx context.Context, id string) error
}

type fileStore interface {
	SaveStream(key string, r io.Reader) (string, error)
	Delete(key string) error
	PublicURL(key string) string
}

// LinkResourceRequest attaches an external link to a course.
type LinkResourceRequest struct {
	Title   string `json:"title" validate:"required,max=200"`
	URL     string `json:"url" validate:"required,url"`
	Visible bool   `json:"visible"`
}

// FileResourceRequest describes an uploaded file resource.
type FileResourceRequest struct {
	Title    string
	FileName string
	Visible  bool
	Body     io.Reader
}

// ResourceService manages supplementary course material.
type ResourceService struct {
	repo        resourceRepository
	courses     sessionCourseReader
	enrollments courseLinkReader
	store       fileStore
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewResourceService constructs ResourceService.
func NewResourceService(repo resourceRepository, courses sessionCourseReader, enrollments courseLinkReader, store fileStore, validate *validator.Validate, logger *zap.Logger) *ResourceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResourceService{repo: repo, courses: courses, enrollments: enrollments, store: store, validator: validate, logger: logger}
}

// ListByCourse returns a course's resources. The owner sees everything;
// anyone else must hold a non-dropped enrollment and only sees visible ones.
func (s *ResourceService) ListByCourse(ctx context.Context, courseID string, claims *models.JWTClaims) ([]models.Resource, error) {
	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	visibleOnly := !canManageCourse(course, claims)
	if visibleOnly {
		if err := requireCourseLink(ctx, s.enrollments, courseID, claims); err != nil {
			return nil, err
		}
	}
	resources, err := s.repo.ListByCourse(ctx, courseID, visibleOnly)
	if err != nil {
		return nil, appErrors.Operation(err, "failed to list resources")
	}
	return resources, nil
}

// CreateLink attaches an external link resource.
func (s *ResourceService) CreateLink(ctx context.Context, courseID string, claims *models.JWTClaims, req LinkResourceRequest) (*models.Resource, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resource payload")
	}
	if err := s.requireOwner(ctx, courseID, claims); err != nil {
		return nil, err
	}
	resource := &models.Resource{
		CourseID: courseID,
		Type:     models.ResourceTypeLink,
		Title:    req.Title,
		URL:      req.URL,
		Visible:  req.Visible,
	}
	if err := s.repo.Create(ctx, resource); err != nil {
		return nil, appErrors.Operation(err, "failed to create resource")
	}
	return resource, nil
}

// UploadFile stores an uploaded file and records it as a resource.
func (s *ResourceService) UploadFile(ctx context.Context, courseID string, claims *models.JWTClaims, req FileResourceRequest) (*models.Resource, error) {
	if req.Title == "" || req.FileName == "" || req.Body == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title and file are required")
	}
	if err := s.requireOwner(ctx, courseID, claims); err != nil {
		return nil, err
	}

	key := storage.GenerateKey("resources", req.FileName)
	if _, err := s.store.SaveStream(key, req.Body); err != nil {
		return nil, appErrors.Operation(err, "failed to store file")
	}

	resource := &models.Resource{
		CourseID: courseID,
		Type:     models.ResourceTypeFile,
		Title:    req.Title,
		URL:      s.store.PublicURL(key),
		FileKey:  &key,
		Visible:  req.Visible,
	}
	if err := s.repo.Create(ctx, resource); err != nil {
		if derr := s.store.Delete(key); derr != nil {
			s.logger.Warn("failed to remove orphaned upload", zap.String("key", key), zap.Error(derr))
		}
		return nil, appErrors.Operation(err, "failed to create resource")
	}
	return resource, nil
}

// Update edits a resource's title, URL and visibility.
func (s *ResourceService) Update(ctx context.Context, id string, claims *models.JWTClaims, req LinkResourceRequest) (*models.Resource, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resource payload")
	}
	resource, err := s.loadResource(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwner(ctx, resource.CourseID, claims); err != nil {
		return nil, err
	}
	resource.Title = req.Title
	resource.Visible = req.Visible
	if resource.Type == models.ResourceTypeLink {
		resource.URL = req.URL
	}
	if err := s.repo.Update(ctx, resource); err != nil {
		return nil, appErrors.Operation(err, "failed to update resource")
	}
	return resource, nil
}

// Delete removes a resource and any stored file behind it.
func (s *ResourceService) Delete(ctx context.Context, id string, claims *models.JWTClaims) error {
	resource, err := s.loadResource(ctx, id)
	if err != nil {
		return err
	}
	if err := s.requireOwner(ctx, resource.CourseID, claims); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Operation(err, "failed to delete resource")
	}
	if resource.FileKey != nil {
		if err := s.store.Delete(*resource.FileKey); err != nil {
			s.logger.Warn("failed to remove stored file", zap.String("key", *resource.FileKey), zap.Error(err))
		}
	}
	return nil
}

func (s *ResourceService) requireOwner(ctx context.Context, courseID string, claims *models.JWTClaims) error {
	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return err
	}
	if !canManageCourse(course, claims) {
		return appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}
	return nil
}

func (s *ResourceService) loadCourse(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Operation(err, "failed to load course")
	}
	return course, nil
}

func (s *ResourceService) loadResource(ctx context.Context, id string) (*models.Resource, error) {
	resource, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, appErrors.Operation(err, "failed to load resource")
	}
	return resource, nil
}
