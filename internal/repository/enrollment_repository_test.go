package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEnrollmentRepositoryFindByCourseAndActorStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	studentID := "stu-1"
	rows := sqlmock.NewRows([]string{"id", "course_id", "student_id", "student_profile_id", "status", "progress", "enrolled_at", "updated_at"}).
		AddRow("enr-1", "course-1", studentID, nil, models.EnrollmentStatusDropped, 40, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.course_id = $1 AND e.student_id = $2 LIMIT 1")).
		WithArgs("course-1", studentID).
		WillReturnRows(rows)

	enrollment, err := repo.FindByCourseAndActor(context.Background(), "course-1", models.Actor{StudentID: &studentID})
	require.NoError(t, err)
	require.Equal(t, "enr-1", enrollment.ID)
	require.Equal(t, models.EnrollmentStatusDropped, enrollment.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryFindByCourseAndActorEmpty(t *testing.T) {
	db, _, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	_, err := repo.FindByCourseAndActor(context.Background(), "course-1", models.Actor{})
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestEnrollmentRepositoryCountActiveByCourse(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND status <> $2")).
		WithArgs("course-1", models.EnrollmentStatusDropped).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.CountActiveByCourse(context.Background(), "course-1")
	require.NoError(t, err)
	require.Equal(t, 7, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCountActiveByProfile(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments WHERE student_profile_id = $1 AND status <> $2")).
		WithArgs("prof-1", models.EnrollmentStatusDropped).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountActiveByProfile(context.Background(), "prof-1")
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryHasActiveLink(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("(e.student_id = $3 OR sp.parent_id = $3)")).
		WithArgs("course-1", models.EnrollmentStatusDropped, "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	linked, err := repo.HasActiveLink(context.Background(), "course-1", "user-1")
	require.NoError(t, err)
	require.True(t, linked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryReactivate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2, progress = 0, enrolled_at = $3, updated_at = $3 WHERE id = $1")).
		WithArgs("enr-1", models.EnrollmentStatusActive, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Reactivate(context.Background(), "enr-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
