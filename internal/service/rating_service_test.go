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

type mockRatingRepo struct {
	ratings map[string]models.Rating
	deleted []string
}

func ratingKey(courseID, studentID string) string {
	return courseID + "/" + studentID
}

func (m *mockRatingRepo) Upsert(ctx context.Context, rating *models.Rating) error {
	if m.ratings == nil {
		m.ratings = make(map[string]models.Rating)
	}
	key := ratingKey(rating.CourseID, rating.StudentID)
	if existing, ok := m.ratings[key]; ok {
		rating.ID = existing.ID
	} else if rating.ID == "" {
		rating.ID = "new-rating"
	}
	m.ratings[key] = *rating
	return nil
}

func (m *mockRatingRepo) FindByCourseAndStudent(ctx context.Context, courseID, studentID string) (*models.Rating, error) {
	if r, ok := m.ratings[ratingKey(courseID, studentID)]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRatingRepo) ListByCourse(ctx context.Context, courseID string) ([]models.RatingDetail, error) {
	var list []models.RatingDetail
	for _, r := range m.ratings {
		if r.CourseID == courseID {
			list = append(list, models.RatingDetail{Rating: r})
		}
	}
	return list, nil
}

func (m *mockRatingRepo) Summary(ctx context.Context, courseID string) (*models.RatingSummary, error) {
	summary := &models.RatingSummary{CourseID: courseID}
	total := 0
	for _, r := range m.ratings {
		if r.CourseID == courseID {
			total += r.Stars
			summary.Count++
		}
	}
	if summary.Count > 0 {
		summary.Average = float64(total) / float64(summary.Count)
	}
	return summary, nil
}

func (m *mockRatingRepo) Delete(ctx context.Context, id string) error {
	for key, r := range m.ratings {
		if r.ID == id {
			delete(m.ratings, key)
		}
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func newRatingService(repo *mockRatingRepo, enrollments *mockEnrollmentRepo, course *models.Course) *RatingService {
	courses := &mockCourseReader{courses: map[string]*models.Course{course.ID: course}}
	cache := NewCacheService(nil, nil, 0, nil, false)
	return NewRatingService(repo, courses, enrollments, cache, nil, nil)
}

func TestRatingRateUpserts(t *testing.T) {
	repo := &mockRatingRepo{}
	enrollments := &mockEnrollmentRepo{}
	enrollStudent(enrollments, "course-1", "stu-1")
	svc := newRatingService(repo, enrollments, publishedCourse("course-1", "inst-1"))

	first, err := svc.Rate(context.Background(), "course-1", studentClaims("stu-1"), RateRequest{Stars: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, first.Stars)

	second, err := svc.Rate(context.Background(), "course-1", studentClaims("stu-1"), RateRequest{Stars: 5, Comment: "much better now"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 5, second.Stars)
	assert.Len(t, repo.ratings, 1)
}

func TestRatingOnlyStudents(t *testing.T) {
	svc := newRatingService(&mockRatingRepo{}, &mockEnrollmentRepo{}, publishedCourse("course-1", "inst-1"))

	parent := &models.JWTClaims{UserID: "parent-1", Role: models.RoleParent}
	_, err := svc.Rate(context.Background(), "course-1", parent, RateRequest{Stars: 4})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestRatingRequiresEnrollment(t *testing.T) {
	svc := newRatingService(&mockRatingRepo{}, &mockEnrollmentRepo{}, publishedCourse("course-1", "inst-1"))

	_, err := svc.Rate(context.Background(), "course-1", studentClaims("stu-1"), RateRequest{Stars: 4})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestRatingDroppedEnrollmentForbidden(t *testing.T) {
	enrollments := &mockEnrollmentRepo{}
	enrollStudent(enrollments, "course-1", "stu-1")
	e := enrollments.enrollments["enr-1"]
	e.Status = models.EnrollmentStatusDropped
	enrollments.enrollments["enr-1"] = e
	svc := newRatingService(&mockRatingRepo{}, enrollments, publishedCourse("course-1", "inst-1"))

	_, err := svc.Rate(context.Background(), "course-1", studentClaims("stu-1"), RateRequest{Stars: 4})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestRatingStarsOutOfRange(t *testing.T) {
	enrollments := &mockEnrollmentRepo{}
	enrollStudent(enrollments, "course-1", "stu-1")
	svc := newRatingService(&mockRatingRepo{}, enrollments, publishedCourse("course-1", "inst-1"))

	_, err := svc.Rate(context.Background(), "course-1", studentClaims("stu-1"), RateRequest{Stars: 6})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRatingSummaryAverages(t *testing.T) {
	repo := &mockRatingRepo{ratings: map[string]models.Rating{
		"course-1/stu-1": {ID: "r1", CourseID: "course-1", StudentID: "stu-1", Stars: 4},
		"course-1/stu-2": {ID: "r2", CourseID: "course-1", StudentID: "stu-2", Stars: 5},
	}}
	svc := newRatingService(repo, &mockEnrollmentRepo{}, publishedCourse("course-1", "inst-1"))

	summary, err := svc.Summary(context.Background(), "course-1")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Count)
	assert.InDelta(t, 4.5, summary.Average, 0.001)
}

func TestRatingDeleteOwn(t *testing.T) {
	repo := &mockRatingRepo{ratings: map[string]models.Rating{
		"course-1/stu-1": {ID: "r1", CourseID: "course-1", StudentID: "stu-1", Stars: 4},
	}}
	svc := newRatingService(repo, &mockEnrollmentRepo{}, publishedCourse("course-1", "inst-1"))

	require.NoError(t, svc.Delete(context.Background(), "course-1", studentClaims("stu-1")))
	assert.Equal(t, []string{"r1"}, repo.deleted)

	err := svc.Delete(context.Background(), "course-1", studentClaims("stu-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
