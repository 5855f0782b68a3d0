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

type mockCourseRepo struct {
	courses map[string]models.Course
	deleted []string
}

func (m *mockCourseRepo) Create(ctx context.Context, course *models.Course) error {
	if m.courses == nil {
		m.courses = make(map[string]models.Course)
	}
	if course.ID == "" {
		course.ID = "new-course"
	}
	m.courses[course.ID] = *course
	return nil
}

func (m *mockCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) FindDetailByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	if c, ok := m.courses[id]; ok {
		return &models.CourseDetail{Course: c}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	var list []models.CourseDetail
	for _, c := range m.courses {
		if filter.PublishedOnly && !c.Published {
			continue
		}
		list = append(list, models.CourseDetail{Course: c})
	}
	return list, len(list), nil
}

func (m *mockCourseRepo) Update(ctx context.Context, course *models.Course) error {
	m.courses[course.ID] = *course
	return nil
}

func (m *mockCourseRepo) UpdatePublished(ctx context.Context, id string, published bool) error {
	if c, ok := m.courses[id]; ok {
		c.Published = published
		m.courses[id] = c
	}
	return nil
}

func (m *mockCourseRepo) Delete(ctx context.Context, id string) error {
	delete(m.courses, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type mockActiveCounter struct {
	count int
}

func (m *mockActiveCounter) CountActiveByCourse(ctx context.Context, courseID string) (int, error) {
	return m.count, nil
}

func validCourseRequest() CourseRequest {
	return CourseRequest{
		Title:                  "Intro to Robotics",
		Category:               "STEM",
		StartDate:              "2024-06-03",
		SelectedDays:           []string{"monday", "wednesday"},
		SessionTime:            "16:00",
		SessionDurationMinutes: 60,
	}
}

func newCourseService(repo *mockCourseRepo, counter *mockActiveCounter) *CourseService {
	cache := NewCacheService(nil, nil, 0, nil, false)
	return NewCourseService(repo, counter, cache, &mockAudit{}, 0, nil, nil)
}

func TestCourseServiceCreate(t *testing.T) {
	repo := &mockCourseRepo{}
	svc := newCourseService(repo, &mockActiveCounter{})

	detail, err := svc.Create(context.Background(), "inst-1", validCourseRequest())
	require.NoError(t, err)
	assert.Equal(t, "inst-1", detail.InstructorID)
	assert.False(t, detail.Published)
	assert.Equal(t, "16:00", detail.SessionTime)
}

func TestCourseServiceCreateRejectsBadTime(t *testing.T) {
	svc := newCourseService(&mockCourseRepo{}, &mockActiveCounter{})

	req := validCourseRequest()
	req.SessionTime = "25:99"
	_, err := svc.Create(context.Background(), "inst-1", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCourseServiceCreateRejectsEndBeforeStart(t *testing.T) {
	svc := newCourseService(&mockCourseRepo{}, &mockActiveCounter{})

	req := validCourseRequest()
	end := "2024-05-01"
	req.HasEndDate = true
	req.EndDate = &end
	_, err := svc.Create(context.Background(), "inst-1", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCourseServiceUpdateForeignForbidden(t *testing.T) {
	repo := &mockCourseRepo{courses: map[string]models.Course{
		"course-1": {ID: "course-1", InstructorID: "inst-1"},
	}}
	svc := newCourseService(repo, &mockActiveCounter{})

	_, err := svc.Update(context.Background(), "course-1", instructorClaims("inst-2"), validCourseRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestCourseServiceAdminCanManageAnyCourse(t *testing.T) {
	repo := &mockCourseRepo{courses: map[string]models.Course{
		"course-1": {ID: "course-1", InstructorID: "inst-1"},
	}}
	svc := newCourseService(repo, &mockActiveCounter{})

	admin := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
	detail, err := svc.SetPublished(context.Background(), "course-1", admin, true)
	require.NoError(t, err)
	assert.True(t, detail.Published)
}

func TestCourseServiceDeleteWithActiveEnrollments(t *testing.T) {
	repo := &mockCourseRepo{courses: map[string]models.Course{
		"course-1": {ID: "course-1", InstructorID: "inst-1"},
	}}
	svc := newCourseService(repo, &mockActiveCounter{count: 3})

	err := svc.Delete(context.Background(), "course-1", instructorClaims("inst-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.deleted)
}

func TestCourseServiceDeleteEmptyCourse(t *testing.T) {
	repo := &mockCourseRepo{courses: map[string]models.Course{
		"course-1": {ID: "course-1", InstructorID: "inst-1"},
	}}
	svc := newCourseService(repo, &mockActiveCounter{count: 0})

	require.NoError(t, svc.Delete(context.Background(), "course-1", instructorClaims("inst-1")))
	assert.Equal(t, []string{"course-1"}, repo.deleted)
}

func TestCourseServiceGetHidesUnpublished(t *testing.T) {
	repo := &mockCourseRepo{courses: map[string]models.Course{
		"course-1": {ID: "course-1", InstructorID: "inst-1", Published: false},
	}}
	svc := newCourseService(repo, &mockActiveCounter{})

	_, err := svc.Get(context.Background(), "course-1", studentClaims("stu-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	detail, err := svc.Get(context.Background(), "course-1", instructorClaims("inst-1"))
	require.NoError(t, err)
	assert.Equal(t, "course-1", detail.ID)
}

func TestCourseServiceBrowseOnlyPublished(t *testing.T) {
	repo := &mockCourseRepo{courses: map[string]models.Course{
		"pub":   {ID: "pub", InstructorID: "inst-1", Published: true},
		"draft": {ID: "draft", InstructorID: "inst-1", Published: false},
	}}
	svc := newCourseService(repo, &mockActiveCounter{})

	courses, pagination, err := svc.Browse(context.Background(), models.CourseFilter{})
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "pub", courses[0].ID)
	assert.Equal(t, 1, pagination.TotalCount)
}
