package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub-api/internal/models"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
)

type mockStudentProfileRepo struct {
	profiles map[string]models.StudentProfile
	deleted  []string
}

func (m *mockStudentProfileRepo) Create(ctx context.Context, profile *models.StudentProfile) error {
	if m.profiles == nil {
		m.profiles = make(map[string]models.StudentProfile)
	}
	if profile.ID == "" {
		profile.ID = profile.FullName
	}
	m.profiles[profile.ID] = *profile
	return nil
}

func (m *mockStudentProfileRepo) FindByID(ctx context.Context, id string) (*models.StudentProfile, error) {
	if p, ok := m.profiles[id]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentProfileRepo) ListByParent(ctx context.Context, parentID string) ([]models.StudentProfile, error) {
	var list []models.StudentProfile
	for _, p := range m.profiles {
		if p.ParentID == parentID {
			list = append(list, p)
		}
	}
	return list, nil
}

func (m *mockStudentProfileRepo) Update(ctx context.Context, id, fullName string, birthYear *int, notes string) error {
	p := m.profiles[id]
	p.FullName = fullName
	p.BirthYear = birthYear
	p.Notes = notes
	m.profiles[id] = p
	return nil
}

func (m *mockStudentProfileRepo) Delete(ctx context.Context, id string) error {
	delete(m.profiles, id)
	m.deleted = append(m.deleted, id)
	return nil
}

// mockProfileEnrollments counts non-dropped statuses the way the SQL COUNT
// does, so the guard sees every enrollment regardless of how many exist.
type mockProfileEnrollments struct {
	statuses map[string][]models.EnrollmentStatus
}

func (m *mockProfileEnrollments) CountActiveByProfile(ctx context.Context, profileID string) (int, error) {
	active := 0
	for _, status := range m.statuses[profileID] {
		if status != models.EnrollmentStatusDropped {
			active++
		}
	}
	return active, nil
}

func TestStudentProfileDeleteRefusedWhileEnrolled(t *testing.T) {
	repo := &mockStudentProfileRepo{profiles: map[string]models.StudentProfile{
		"prof-1": {ID: "prof-1", ParentID: "parent-1", FullName: "Kid One"},
	}}
	// One active enrollment buried under a pile of dropped ones must still
	// block deletion.
	statuses := []models.EnrollmentStatus{models.EnrollmentStatusActive}
	for i := 0; i < 25; i++ {
		statuses = append(statuses, models.EnrollmentStatusDropped)
	}
	enrollments := &mockProfileEnrollments{statuses: map[string][]models.EnrollmentStatus{"prof-1": statuses}}
	svc := NewStudentProfileService(repo, enrollments, nil, nil)

	err := svc.Delete(context.Background(), "parent-1", "prof-1")

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.deleted)
}

func TestStudentProfileDeleteWithOnlyDroppedEnrollments(t *testing.T) {
	repo := &mockStudentProfileRepo{profiles: map[string]models.StudentProfile{
		"prof-1": {ID: "prof-1", ParentID: "parent-1", FullName: "Kid One"},
	}}
	enrollments := &mockProfileEnrollments{statuses: map[string][]models.EnrollmentStatus{
		"prof-1": {models.EnrollmentStatusDropped, models.EnrollmentStatusDropped},
	}}
	svc := NewStudentProfileService(repo, enrollments, nil, nil)

	require.NoError(t, svc.Delete(context.Background(), "parent-1", "prof-1"))
	assert.Equal(t, []string{"prof-1"}, repo.deleted)
}

func TestStudentProfileDeleteForeignParent(t *testing.T) {
	repo := &mockStudentProfileRepo{profiles: map[string]models.StudentProfile{
		"prof-1": {ID: "prof-1", ParentID: "parent-1", FullName: "Kid One"},
	}}
	svc := NewStudentProfileService(repo, &mockProfileEnrollments{}, nil, nil)

	err := svc.Delete(context.Background(), "parent-2", "prof-1")

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
