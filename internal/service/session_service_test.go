package service

import (
	"context"
	"database/sql"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub-api/internal/models"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
)

type mockSessionRepo struct {
	sessions map[string]models.Session
	batches  [][]models.Session
}

func (m *mockSessionRepo) Create(ctx context.Context, session *models.Session) error {
	if m.sessions == nil {
		m.sessions = make(map[string]models.Session)
	}
	m.sessions[session.ID] = *session
	return nil
}

func (m *mockSessionRepo) CreateBatch(ctx context.Context, sessions []models.Session) error {
	if m.sessions == nil {
		m.sessions = make(map[string]models.Session)
	}
	for i := range sessions {
		if sessions[i].ID == "" {
			sessions[i].ID = sessions[i].Title
		}
		m.sessions[sessions[i].ID] = sessions[i]
	}
	m.batches = append(m.batches, sessions)
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*models.Session, error) {
	if s, ok := m.sessions[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSessionRepo) ListByCourse(ctx context.Context, courseID string) ([]models.Session, error) {
	var list []models.Session
	for _, s := range m.sessions {
		if s.CourseID == courseID {
			list = append(list, s)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].StartsAt.Before(list[j].StartsAt) })
	return list, nil
}

func (m *mockSessionRepo) CountByCourse(ctx context.Context, courseID string) (int, error) {
	count := 0
	for _, s := range m.sessions {
		if s.CourseID == courseID {
			count++
		}
	}
	return count, nil
}

func (m *mockSessionRepo) LatestByCourse(ctx context.Context, courseID string) (*models.Session, error) {
	var latest *models.Session
	for _, s := range m.sessions {
		if s.CourseID != courseID {
			continue
		}
		s := s
		if latest == nil || s.StartsAt.After(latest.StartsAt) {
			latest = &s
		}
	}
	if latest == nil {
		return nil, sql.ErrNoRows
	}
	return latest, nil
}

func (m *mockSessionRepo) Update(ctx context.Context, session *models.Session) error {
	m.sessions[session.ID] = *session
	return nil
}

func (m *mockSessionRepo) Delete(ctx context.Context, id string) error {
	delete(m.sessions, id)
	return nil
}

func instructorClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleInstructor}
}

func openEndedCourse() *models.Course {
	link := "https://meet.example.com/room"
	return &models.Course{
		ID:                     "course-1",
		InstructorID:           "inst-1",
		StartDate:              time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
		SelectedDays:           []string{"Monday", "Wednesday"},
		SessionTime:            "16:00",
		SessionDurationMinutes: 60,
		MeetingLink:            &link,
		Published:              true,
	}
}

func newSessionService(repo *mockSessionRepo, course *models.Course) *SessionService {
	courses := &mockCourseReader{courses: map[string]*models.Course{course.ID: course}}
	return NewSessionService(repo, courses, nil, SessionConfig{InitialBatchSize: 5}, nil, nil)
}

func TestSessionServiceGenerateInitialOpenEnded(t *testing.T) {
	repo := &mockSessionRepo{}
	course := openEndedCourse()
	svc := newSessionService(repo, course)

	sessions, err := svc.GenerateInitial(context.Background(), "course-1", instructorClaims("inst-1"))
	require.NoError(t, err)
	require.Len(t, sessions, 5)

	assert.Equal(t, "Session 1 Topics", sessions[0].Title)
	assert.Equal(t, "Session 5 Topics", sessions[4].Title)
	assert.Equal(t, time.Date(2024, 6, 3, 16, 0, 0, 0, time.UTC), sessions[0].StartsAt)
	assert.Equal(t, time.Date(2024, 6, 17, 16, 0, 0, 0, time.UTC), sessions[4].StartsAt)
	for _, s := range sessions {
		assert.Equal(t, 60, s.DurationMinutes)
		require.NotNil(t, s.MeetingLink)
		assert.Equal(t, *course.MeetingLink, *s.MeetingLink)
	}
}

func TestSessionServiceGenerateInitialBounded(t *testing.T) {
	repo := &mockSessionRepo{}
	course := openEndedCourse()
	end := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)
	course.HasEndDate = true
	course.EndDate = &end
	svc := newSessionService(repo, course)

	sessions, err := svc.GenerateInitial(context.Background(), "course-1", instructorClaims("inst-1"))
	require.NoError(t, err)
	require.Len(t, sessions, 4)
	assert.Equal(t, time.Date(2024, 6, 12, 16, 0, 0, 0, time.UTC), sessions[3].StartsAt)
}

func TestSessionServiceGenerateInitialRefusesTwice(t *testing.T) {
	repo := &mockSessionRepo{}
	course := openEndedCourse()
	svc := newSessionService(repo, course)

	_, err := svc.GenerateInitial(context.Background(), "course-1", instructorClaims("inst-1"))
	require.NoError(t, err)

	_, err = svc.GenerateInitial(context.Background(), "course-1", instructorClaims("inst-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSessionServiceGenerateInitialForeignInstructor(t *testing.T) {
	svc := newSessionService(&mockSessionRepo{}, openEndedCourse())

	_, err := svc.GenerateInitial(context.Background(), "course-1", instructorClaims("inst-2"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSessionServiceGenerateMoreContinues(t *testing.T) {
	repo := &mockSessionRepo{}
	course := openEndedCourse()
	svc := newSessionService(repo, course)

	_, err := svc.GenerateInitial(context.Background(), "course-1", instructorClaims("inst-1"))
	require.NoError(t, err)

	more, err := svc.GenerateMore(context.Background(), "course-1", instructorClaims("inst-1"), GenerateSessionsRequest{Count: 3})
	require.NoError(t, err)
	require.Len(t, more, 3)

	assert.Equal(t, "Session 6 Topics", more[0].Title)
	assert.Equal(t, time.Date(2024, 6, 19, 16, 0, 0, 0, time.UTC), more[0].StartsAt)
	assert.Equal(t, time.Date(2024, 6, 24, 16, 0, 0, 0, time.UTC), more[1].StartsAt)
	assert.Equal(t, time.Date(2024, 6, 26, 16, 0, 0, 0, time.UTC), more[2].StartsAt)
}

func TestSessionServiceGenerateMoreBoundedRefused(t *testing.T) {
	repo := &mockSessionRepo{}
	course := openEndedCourse()
	end := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)
	course.HasEndDate = true
	course.EndDate = &end
	svc := newSessionService(repo, course)

	_, err := svc.GenerateMore(context.Background(), "course-1", instructorClaims("inst-1"), GenerateSessionsRequest{Count: 3})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSessionServiceGenerateMoreNeedsInitial(t *testing.T) {
	svc := newSessionService(&mockSessionRepo{}, openEndedCourse())

	_, err := svc.GenerateMore(context.Background(), "course-1", instructorClaims("inst-1"), GenerateSessionsRequest{Count: 2})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSessionServiceCreateSingle(t *testing.T) {
	repo := &mockSessionRepo{}
	course := openEndedCourse()
	svc := newSessionService(repo, course)

	link := "https://meet.example.com/extra"
	session, err := svc.Create(context.Background(), "course-1", instructorClaims("inst-1"), CreateSessionRequest{
		Title:           "Makeup Class",
		StartsAt:        "2024-06-20T16:00:00Z",
		DurationMinutes: 45,
		MeetingLink:     &link,
	})
	require.NoError(t, err)

	assert.Equal(t, "Makeup Class", session.Title)
	assert.Equal(t, time.Date(2024, 6, 20, 16, 0, 0, 0, time.UTC), session.StartsAt)
	assert.Equal(t, 45, session.DurationMinutes)
	require.NotNil(t, session.MeetingLink)
	assert.Equal(t, link, *session.MeetingLink)
}

func TestSessionServiceCreateDefaultsTitleAndLink(t *testing.T) {
	repo := &mockSessionRepo{}
	course := openEndedCourse()
	svc := newSessionService(repo, course)

	_, err := svc.GenerateInitial(context.Background(), "course-1", instructorClaims("inst-1"))
	require.NoError(t, err)

	session, err := svc.Create(context.Background(), "course-1", instructorClaims("inst-1"), CreateSessionRequest{
		StartsAt:        "2024-07-01T16:00:00Z",
		DurationMinutes: 60,
	})
	require.NoError(t, err)

	assert.Equal(t, "Session 6 Topics", session.Title)
	require.NotNil(t, session.MeetingLink)
	assert.Equal(t, *course.MeetingLink, *session.MeetingLink)
}

func TestSessionServiceCreateForeignInstructor(t *testing.T) {
	svc := newSessionService(&mockSessionRepo{}, openEndedCourse())

	_, err := svc.Create(context.Background(), "course-1", instructorClaims("inst-2"), CreateSessionRequest{
		StartsAt:        "2024-07-01T16:00:00Z",
		DurationMinutes: 60,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSessionServiceCreateRejectsBadStart(t *testing.T) {
	svc := newSessionService(&mockSessionRepo{}, openEndedCourse())

	_, err := svc.Create(context.Background(), "course-1", instructorClaims("inst-1"), CreateSessionRequest{
		StartsAt:        "tomorrow at four",
		DurationMinutes: 60,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSessionServiceGenerateInitialNoDaysYieldsNoSessions(t *testing.T) {
	repo := &mockSessionRepo{}
	course := openEndedCourse()
	course.SelectedDays = nil
	svc := newSessionService(repo, course)

	sessions, err := svc.GenerateInitial(context.Background(), "course-1", instructorClaims("inst-1"))
	require.NoError(t, err)
	assert.Empty(t, sessions)
}
