package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub-api/internal/models"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
)

// mockRosterEnrollments pages the way the real repository does: page one
// by default, sizes clamped to 100.
type mockRosterEnrollments struct {
	rows  []models.EnrollmentDetail
	calls int
}

func (m *mockRosterEnrollments) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	m.calls++
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	start := (page - 1) * size
	if start >= len(m.rows) {
		return nil, len(m.rows), nil
	}
	end := start + size
	if end > len(m.rows) {
		end = len(m.rows)
	}
	return m.rows[start:end], len(m.rows), nil
}

func rosterRows(n int) []models.EnrollmentDetail {
	rows := make([]models.EnrollmentDetail, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, models.EnrollmentDetail{
			Enrollment: models.Enrollment{
				Status:     models.EnrollmentStatusActive,
				Progress:   i % 100,
				EnrolledAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			},
			StudentName: fmt.Sprintf("Learner %03d", i),
		})
	}
	return rows
}

func TestExportRosterIncludesEveryPage(t *testing.T) {
	enrollments := &mockRosterEnrollments{rows: rosterRows(250)}
	courses := &mockCourseReader{courses: map[string]*models.Course{
		"course-1": {ID: "course-1", Title: "Algebra Basics", InstructorID: "inst-1"},
	}}
	svc := NewExportService(enrollments, courses, nil)

	result, err := svc.Roster(context.Background(), "course-1", instructorClaims("inst-1"), "csv")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(result.Data), "\n"), "\n")
	require.Len(t, lines, 251) // header plus every enrollment
	assert.Contains(t, lines[1], "Learner 000")
	assert.Contains(t, lines[250], "Learner 249")
	assert.GreaterOrEqual(t, enrollments.calls, 3)
	assert.Equal(t, "algebra-basics-roster.csv", result.FileName)
}

func TestExportRosterForeignInstructor(t *testing.T) {
	courses := &mockCourseReader{courses: map[string]*models.Course{
		"course-1": {ID: "course-1", Title: "Algebra Basics", InstructorID: "inst-1"},
	}}
	svc := NewExportService(&mockRosterEnrollments{}, courses, nil)

	_, err := svc.Roster(context.Background(), "course-1", instructorClaims("inst-2"), "csv")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestExportRosterUnknownFormat(t *testing.T) {
	courses := &mockCourseReader{courses: map[string]*models.Course{
		"course-1": {ID: "course-1", Title: "Algebra Basics", InstructorID: "inst-1"},
	}}
	svc := NewExportService(&mockRosterEnrollments{}, courses, nil)

	_, err := svc.Roster(context.Background(), "course-1", instructorClaims("inst-1"), "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
