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

type studentProfileRepository interface {
	Create(ctx context.Context, profile *models.StudentProfile) error
	FindByID(ctx context.Context, id string) (*models.StudentProfile, error)
	ListByParent(ctx context.Context, parentID string) ([]models.StudentProfile, error)
	Update(ctx context.Context, id, fullName string, birthYear *int, notes string) error
	Delete(ctx context.Context, id string) error
}

type profileEnrollmentReader interface {
	CountActiveByProfile(ctx context.Context, profileID string) (int, error)
}

// StudentProfileRequest creates or updates a child profile.
type StudentProfileRequest struct {
	FullName  string `json:"full_name" validate:"required"`
	BirthYear *int   `json:"birth_year,omitempty" validate:"omitempty,min=1950,max=2100"`
	Notes     string `json:"notes" validate:"max=2000"`
}

// StudentProfileService manages parent-owned child profiles.
type StudentProfileService struct {
	repo        studentProfileRepository
	enrollments profileEnrollmentReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewStudentProfileService constructs StudentProfileService.
func NewStudentProfileService(repo studentProfileRepository, enrollments profileEnrollmentReader, validate *validator.Validate, logger *zap.Logger) *StudentProfileService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentProfileService{repo: repo, enrollments: enrollments, validator: validate, logger: logger}
}

// Create registers a child profile under the calling parent.
func (s *StudentProfileService) Create(ctx context.Context, parentID string, req StudentProfileRequest) (*models.StudentProfile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}
	profile := &models.StudentProfile{
		ParentID:  parentID,
		FullName:  req.FullName,
		BirthYear: req.BirthYear,
		Notes:     req.Notes,
	}
	if err := s.repo.Create(ctx, profile); err != nil {
		return nil, appErrors.Operation(err, "failed to create profile")
	}
	return profile, nil
}

// List returns the calling parent's profiles.
func (s *StudentProfileService) List(ctx context.Context, parentID string) ([]models.StudentProfile, error) {
	profiles, err := s.repo.ListByParent(ctx, parentID)
	if err != nil {
		return nil, appErrors.Operation(err, "failed to list profiles")
	}
	return profiles, nil
}

// Get returns a profile after checking the caller owns it.
func (s *StudentProfileService) Get(ctx context.Context, parentID, id string) (*models.StudentProfile, error) {
	profile, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "profile not found")
		}
		return nil, appErrors.Operation(err, "failed to load profile")
	}
	if profile.ParentID != parentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "profile belongs to another parent")
	}
	return profile, nil
}

// Update mutates a profile owned by the caller.
func (s *StudentProfileService) Update(ctx context.Context, parentID, id string, req StudentProfileRequest) (*models.StudentProfile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}
	if _, err := s.Get(ctx, parentID, id); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, id, req.FullName, req.BirthYear, req.Notes); err != nil {
		return nil, appErrors.Operation(err, "failed to update profile")
	}
	return s.Get(ctx, parentID, id)
}

// Delete removes an owned profile. Profiles with a non-dropped enrollment
// are kept to preserve roster history.
func (s *StudentProfileService) Delete(ctx context.Context, parentID, id string) error {
	if _, err := s.Get(ctx, parentID, id); err != nil {
		return err
	}
	active, err := s.enrollments.CountActiveByProfile(ctx, id)
	if err != nil {
		return appErrors.Operation(err, "failed to check enrollments")
	}
	if active > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "profile has active enrollments")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Operation(err, "failed to delete profile")
	}
	return nil
}
