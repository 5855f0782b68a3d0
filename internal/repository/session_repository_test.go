package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub-api/internal/models"
)

func TestSessionRepositoryCreateBatchEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	require.NoError(t, repo.CreateBatch(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryCreateBatchAssignsIDs(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	sessions := []models.Session{
		{CourseID: "course-1", Title: "Session 1 Topics", StartsAt: time.Now(), DurationMinutes: 60},
		{CourseID: "course-1", Title: "Session 2 Topics", StartsAt: time.Now().Add(48 * time.Hour), DurationMinutes: 60},
	}
	mock.ExpectExec("INSERT INTO sessions").
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.CreateBatch(context.Background(), sessions))
	require.NotEmpty(t, sessions[0].ID)
	require.NotEmpty(t, sessions[1].ID)
	require.NotEqual(t, sessions[0].ID, sessions[1].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryLatestByCourse(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	startsAt := time.Date(2024, 6, 17, 16, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "course_id", "title", "starts_at", "duration_minutes", "meeting_link", "created_at", "updated_at"}).
		AddRow("sess-5", "course-1", "Session 5 Topics", startsAt, 60, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM sessions WHERE course_id = $1 ORDER BY starts_at DESC LIMIT 1")).
		WithArgs("course-1").
		WillReturnRows(rows)

	session, err := repo.LatestByCourse(context.Background(), "course-1")
	require.NoError(t, err)
	require.Equal(t, "sess-5", session.ID)
	require.True(t, session.StartsAt.Equal(startsAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryCountByCourse(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM sessions WHERE course_id = $1")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	count, err := repo.CountByCourse(context.Background(), "course-1")
	require.NoError(t, err)
	require.Equal(t, 5, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
