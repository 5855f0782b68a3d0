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

type mockHomeworkRepo struct {
	homeworks map[string]models.Homework
}

func (m *mockHomeworkRepo) Create(ctx context.Context, homework *models.Homework) error {
	if m.homeworks == nil {
		m.homeworks = make(map[string]models.Homework)
	}
	if homework.ID == "" {
		homework.ID = homework.Title
	}
	m.homeworks[homework.ID] = *homework
	return nil
}

func (m *mockHomeworkRepo) FindByID(ctx context.Context, id string) (*models.Homework, error) {
	if hw, ok := m.homeworks[id]; ok {
		return &hw, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockHomeworkRepo) ListByCourse(ctx context.Context, courseID string, publishedOnly bool) ([]models.Homework, error) {
	var list []models.Homework
	for _, hw := range m.homeworks {
		if hw.CourseID != courseID {
			continue
		}
		if publishedOnly && !hw.Published {
			continue
		}
		list = append(list, hw)
	}
	return list, nil
}

func (m *mockHomeworkRepo) Update(ctx context.Context, homework *models.Homework) error {
	m.homeworks[homework.ID] = *homework
	return nil
}

func (m *mockHomeworkRepo) Delete(ctx context.Context, id string) error {
	delete(m.homeworks, id)
	return nil
}

func newHomeworkFixture(links map[string]bool) *HomeworkService {
	repo := &mockHomeworkRepo{homeworks: map[string]models.Homework{
		"hw-1": {ID: "hw-1", CourseID: "course-1", Title: "Week 1", Published: true},
		"hw-2": {ID: "hw-2", CourseID: "course-1", Title: "Week 2 draft", Published: false},
	}}
	courses := &mockCourseReader{courses: map[string]*models.Course{
		"course-1": {ID: "course-1", Title: "Algebra Basics", InstructorID: "inst-1"},
	}}
	return NewHomeworkService(repo, courses, &mockCourseLinks{linked: links}, nil, nil)
}

func TestHomeworkListEnrolledStudentSeesPublished(t *testing.T) {
	svc := newHomeworkFixture(map[string]bool{"course-1/stu-1": true})

	homeworks, err := svc.ListByCourse(context.Background(), "course-1", studentMessageClaims("stu-1"))
	require.NoError(t, err)
	require.Len(t, homeworks, 1)
	assert.Equal(t, "hw-1", homeworks[0].ID)
}

func TestHomeworkListOwnerSeesDrafts(t *testing.T) {
	svc := newHomeworkFixture(nil)

	homeworks, err := svc.ListByCourse(context.Background(), "course-1", instructorClaims("inst-1"))
	require.NoError(t, err)
	assert.Len(t, homeworks, 2)
}

func TestHomeworkListUnenrolledStudentForbidden(t *testing.T) {
	svc := newHomeworkFixture(nil)

	_, err := svc.ListByCourse(context.Background(), "course-1", studentMessageClaims("stu-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestHomeworkListAnonymousUnauthorized(t *testing.T) {
	svc := newHomeworkFixture(nil)

	_, err := svc.ListByCourse(context.Background(), "course-1", nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
