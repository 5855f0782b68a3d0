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

type mockResourceRepo struct {
	resources map[string]models.Resource
}

func (m *mockResourceRepo) Create(ctx context.Context, resource *models.Resource) error {
	if m.resources == nil {
		m.resources = make(map[string]models.Resource)
	}
	if resource.ID == "" {
		resource.ID = resource.Title
	}
	m.resources[resource.ID] = *resource
	return nil
}

func (m *mockResourceRepo) FindByID(ctx context.Context, id string) (*models.Resource, error) {
	if r, ok := m.resources[id]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockResourceRepo) ListByCourse(ctx context.Context, courseID string, visibleOnly bool) ([]models.Resource, error) {
	var list []models.Resource
	for _, r := range m.resources {
		if r.CourseID != courseID {
			continue
		}
		if visibleOnly && !r.Visible {
			continue
		}
		list = append(list, r)
	}
	return list, nil
}

func (m *mockResourceRepo) Update(ctx context.Context, resource *models.Resource) error {
	m.resources[resource.ID] = *resource
	return nil
}

func (m *mockResourceRepo) Delete(ctx context.Context, id string) error {
	delete(m.resources, id)
	return nil
}

func newResourceFixture(links map[string]bool) *ResourceService {
	repo := &mockResourceRepo{resources: map[string]models.Resource{
		"res-1": {ID: "res-1", CourseID: "course-1", Type: models.ResourceTypeLink, Title: "Syllabus", Visible: true},
		"res-2": {ID: "res-2", CourseID: "course-1", Type: models.ResourceTypeLink, Title: "Answer key", Visible: false},
	}}
	courses := &mockCourseReader{courses: map[string]*models.Course{
		"course-1": {ID: "course-1", Title: "Algebra Basics", InstructorID: "inst-1"},
	}}
	return NewResourceService(repo, courses, &mockCourseLinks{linked: links}, nil, nil, nil)
}

func TestResourceListEnrolledStudentSeesVisible(t *testing.T) {
	svc := newResourceFixture(map[string]bool{"course-1/stu-1": true})

	resources, err := svc.ListByCourse(context.Background(), "course-1", studentMessageClaims("stu-1"))
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, "res-1", resources[0].ID)
}

func TestResourceListOwnerSeesHidden(t *testing.T) {
	svc := newResourceFixture(nil)

	resources, err := svc.ListByCourse(context.Background(), "course-1", instructorClaims("inst-1"))
	require.NoError(t, err)
	assert.Len(t, resources, 2)
}

func TestResourceListUnenrolledStudentForbidden(t *testing.T) {
	svc := newResourceFixture(nil)

	_, err := svc.ListByCourse(context.Background(), "course-1", studentMessageClaims("stu-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
