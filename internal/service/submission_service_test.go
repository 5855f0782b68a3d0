package service

import (
	"context"
	"database/sql"
	"io"
	"os"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub-api/internal/models"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
	"github.com/coursehub/coursehub-api/pkg/storage"
)

type mockSubmissionRepo struct {
	submissions map[string]models.Submission
	graded      map[string]int
	updated     []string
}

func (m *mockSubmissionRepo) Create(ctx context.Context, submission *models.Submission) error {
	if m.submissions == nil {
		m.submissions = make(map[string]models.Submission)
	}
	if submission.ID == "" {
		submission.ID = "new-sub"
	}
	submission.Status = models.SubmissionStatusSubmitted
	m.submissions[submission.ID] = *submission
	return nil
}

func (m *mockSubmissionRepo) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	if s, ok := m.submissions[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSubmissionRepo) FindByHomeworkAndActor(ctx context.Context, homeworkID string, actor models.Actor) (*models.Submission, error) {
	for _, s := range m.submissions {
		if s.HomeworkID != homeworkID {
			continue
		}
		if actor.StudentID != nil && s.StudentID != nil && *s.StudentID == *actor.StudentID {
			found := s
			return &found, nil
		}
		if actor.StudentProfileID != nil && s.StudentProfileID != nil && *s.StudentProfileID == *actor.StudentProfileID {
			found := s
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockSubmissionRepo) ListByHomework(ctx context.Context, homeworkID string) ([]models.SubmissionDetail, error) {
	var list []models.SubmissionDetail
	for _, s := range m.submissions {
		if s.HomeworkID == homeworkID {
			list = append(list, models.SubmissionDetail{Submission: s})
		}
	}
	return list, nil
}

func (m *mockSubmissionRepo) UpdateContent(ctx context.Context, id, content string, fileKey *string) error {
	m.updated = append(m.updated, id)
	if s, ok := m.submissions[id]; ok {
		s.Content = content
		s.FileKey = fileKey
		m.submissions[id] = s
	}
	return nil
}

func (m *mockSubmissionRepo) Grade(ctx context.Context, id string, grade int, feedback string) error {
	if m.graded == nil {
		m.graded = make(map[string]int)
	}
	m.graded[id] = grade
	if s, ok := m.submissions[id]; ok {
		s.Status = models.SubmissionStatusGraded
		s.Grade = &grade
		s.Feedback = &feedback
		m.submissions[id] = s
	}
	return nil
}

type mockHomeworkReader struct {
	homeworks map[string]*models.Homework
}

func (m *mockHomeworkReader) FindByID(ctx context.Context, id string) (*models.Homework, error) {
	if h, ok := m.homeworks[id]; ok {
		return h, nil
	}
	return nil, sql.ErrNoRows
}

type mockFileStore struct {
	saved    map[string]string
	promoted map[string]string
}

func (m *mockFileStore) SaveStream(key string, r io.Reader) (string, error) {
	if m.saved == nil {
		m.saved = make(map[string]string)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.saved[key] = string(data)
	return key, nil
}

func (m *mockFileStore) Promote(key, destPrefix string) (string, error) {
	if m.promoted == nil {
		m.promoted = make(map[string]string)
	}
	newKey := destPrefix + "/" + path.Base(key)
	m.saved[newKey] = m.saved[key]
	delete(m.saved, key)
	m.promoted[key] = newKey
	return newKey, nil
}

func (m *mockFileStore) Open(key string) (*os.File, error) {
	return nil, os.ErrNotExist
}

type submissionFixture struct {
	repo        *mockSubmissionRepo
	enrollments *mockEnrollmentRepo
	notifier    *mockNotifier
	files       *mockFileStore
	svc         *SubmissionService
}

func newSubmissionFixture(homework *models.Homework, course *models.Course) *submissionFixture {
	f := &submissionFixture{
		repo:        &mockSubmissionRepo{},
		enrollments: &mockEnrollmentRepo{},
		notifier:    &mockNotifier{},
		files:       &mockFileStore{},
	}
	homeworks := &mockHomeworkReader{homeworks: map[string]*models.Homework{homework.ID: homework}}
	courses := &mockCourseReader{courses: map[string]*models.Course{course.ID: course}}
	users := &mockUserReader{users: map[string]*models.User{
		"stu-1":    {ID: "stu-1", Email: "stu@example.com", FullName: "Student One"},
		"parent-1": {ID: "parent-1", Email: "parent@example.com", FullName: "Parent One"},
	}}
	profiles := &mockProfileReader{profiles: map[string]*models.StudentProfile{
		"prof-1": {ID: "prof-1", ParentID: "parent-1", FullName: "Kid One"},
	}}
	signer := storage.NewSignedURLSigner("test-download-secret", time.Minute)
	f.svc = NewSubmissionService(f.repo, homeworks, courses, f.enrollments, profiles, users, f.notifier, &mockAudit{}, signer, f.files, nil, nil)
	return f
}

func textHomework(id, courseID string) *models.Homework {
	return &models.Homework{ID: id, CourseID: courseID, Title: "Week 1", SubmissionType: models.SubmissionTypeText, Published: true}
}

func enrollStudent(repo *mockEnrollmentRepo, courseID, studentID string) {
	sid := studentID
	repo.enrollments = map[string]models.Enrollment{
		"enr-1": {ID: "enr-1", CourseID: courseID, StudentID: &sid, Status: models.EnrollmentStatusActive},
	}
}

func TestSubmissionSubmitCreates(t *testing.T) {
	f := newSubmissionFixture(textHomework("hw-1", "course-1"), publishedCourse("course-1", "inst-1"))
	enrollStudent(f.enrollments, "course-1", "stu-1")

	submission, err := f.svc.Submit(context.Background(), "hw-1", studentClaims("stu-1"), SubmitRequest{Content: "my answer"})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusSubmitted, submission.Status)
	require.NotNil(t, submission.StudentID)
	assert.Equal(t, "stu-1", *submission.StudentID)
}

func TestSubmissionResubmitOverwrites(t *testing.T) {
	f := newSubmissionFixture(textHomework("hw-1", "course-1"), publishedCourse("course-1", "inst-1"))
	enrollStudent(f.enrollments, "course-1", "stu-1")

	first, err := f.svc.Submit(context.Background(), "hw-1", studentClaims("stu-1"), SubmitRequest{Content: "draft"})
	require.NoError(t, err)

	second, err := f.svc.Submit(context.Background(), "hw-1", studentClaims("stu-1"), SubmitRequest{Content: "final"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "final", second.Content)
	assert.Equal(t, []string{first.ID}, f.repo.updated)
}

func TestSubmissionResubmitAfterGradeConflicts(t *testing.T) {
	f := newSubmissionFixture(textHomework("hw-1", "course-1"), publishedCourse("course-1", "inst-1"))
	enrollStudent(f.enrollments, "course-1", "stu-1")

	first, err := f.svc.Submit(context.Background(), "hw-1", studentClaims("stu-1"), SubmitRequest{Content: "answer"})
	require.NoError(t, err)
	require.NoError(t, f.repo.Grade(context.Background(), first.ID, 90, "well done"))

	_, err = f.svc.Submit(context.Background(), "hw-1", studentClaims("stu-1"), SubmitRequest{Content: "again"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSubmissionNotEnrolledForbidden(t *testing.T) {
	f := newSubmissionFixture(textHomework("hw-1", "course-1"), publishedCourse("course-1", "inst-1"))

	_, err := f.svc.Submit(context.Background(), "hw-1", studentClaims("stu-1"), SubmitRequest{Content: "answer"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSubmissionUnpublishedHomeworkHidden(t *testing.T) {
	homework := textHomework("hw-1", "course-1")
	homework.Published = false
	f := newSubmissionFixture(homework, publishedCourse("course-1", "inst-1"))
	enrollStudent(f.enrollments, "course-1", "stu-1")

	_, err := f.svc.Submit(context.Background(), "hw-1", studentClaims("stu-1"), SubmitRequest{Content: "answer"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSubmissionFileHomeworkNeedsFileKey(t *testing.T) {
	homework := textHomework("hw-1", "course-1")
	homework.SubmissionType = models.SubmissionTypeFile
	f := newSubmissionFixture(homework, publishedCourse("course-1", "inst-1"))
	enrollStudent(f.enrollments, "course-1", "stu-1")

	_, err := f.svc.Submit(context.Background(), "hw-1", studentClaims("stu-1"), SubmitRequest{Content: "answer"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	key := "resources/abc.pdf"
	submission, err := f.svc.Submit(context.Background(), "hw-1", studentClaims("stu-1"), SubmitRequest{FileKey: &key})
	require.NoError(t, err)
	require.NotNil(t, submission.FileKey)
}

func TestSubmissionGradeMailsStudent(t *testing.T) {
	f := newSubmissionFixture(textHomework("hw-1", "course-1"), publishedCourse("course-1", "inst-1"))
	enrollStudent(f.enrollments, "course-1", "stu-1")

	submission, err := f.svc.Submit(context.Background(), "hw-1", studentClaims("stu-1"), SubmitRequest{Content: "answer"})
	require.NoError(t, err)

	graded, err := f.svc.Grade(context.Background(), submission.ID, instructorClaims("inst-1"), GradeRequest{Grade: 85, Feedback: "solid"})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusGraded, graded.Status)
	require.NotNil(t, graded.Grade)
	assert.Equal(t, 85, *graded.Grade)
	assert.Equal(t, []string{"stu@example.com"}, f.notifier.gradeNotices)
}

func TestSubmissionGradeForeignInstructorForbidden(t *testing.T) {
	f := newSubmissionFixture(textHomework("hw-1", "course-1"), publishedCourse("course-1", "inst-1"))
	enrollStudent(f.enrollments, "course-1", "stu-1")

	submission, err := f.svc.Submit(context.Background(), "hw-1", studentClaims("stu-1"), SubmitRequest{Content: "answer"})
	require.NoError(t, err)

	_, err = f.svc.Grade(context.Background(), submission.ID, instructorClaims("inst-2"), GradeRequest{Grade: 85})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSubmissionGradeMailsParentForProfile(t *testing.T) {
	f := newSubmissionFixture(textHomework("hw-1", "course-1"), publishedCourse("course-1", "inst-1"))
	profileID := "prof-1"
	f.enrollments.enrollments = map[string]models.Enrollment{
		"enr-1": {ID: "enr-1", CourseID: "course-1", StudentProfileID: &profileID, Status: models.EnrollmentStatusActive},
	}
	parent := &models.JWTClaims{UserID: "parent-1", Role: models.RoleParent, FullName: "Parent One"}

	submission, err := f.svc.Submit(context.Background(), "hw-1", parent, SubmitRequest{Content: "answer", StudentProfileID: &profileID})
	require.NoError(t, err)

	_, err = f.svc.Grade(context.Background(), submission.ID, instructorClaims("inst-1"), GradeRequest{Grade: 70})
	require.NoError(t, err)
	assert.Equal(t, []string{"parent@example.com"}, f.notifier.gradeNotices)
}

func TestSubmissionFileLinkRoundTrip(t *testing.T) {
	f := newSubmissionFixture(textHomework("hw-1", "course-1"), publishedCourse("course-1", "inst-1"))
	enrollStudent(f.enrollments, "course-1", "stu-1")
	fileKey := "submissions/answer.pdf"

	submission, err := f.svc.Submit(context.Background(), "hw-1", studentClaims("stu-1"), SubmitRequest{Content: "see attachment", FileKey: &fileKey})
	require.NoError(t, err)

	token, expiresAt, err := f.svc.FileLink(context.Background(), submission.ID, studentClaims("stu-1"))
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))

	recordID, key, _, err := storage.NewSignedURLSigner("test-download-secret", time.Minute).Parse(token)
	require.NoError(t, err)
	assert.Equal(t, submission.ID, recordID)
	assert.Equal(t, fileKey, key)

	// The course instructor may fetch the same link.
	_, _, err = f.svc.FileLink(context.Background(), submission.ID, instructorClaims("inst-1"))
	require.NoError(t, err)
}

func TestSubmissionFileLinkWithoutFile(t *testing.T) {
	f := newSubmissionFixture(textHomework("hw-1", "course-1"), publishedCourse("course-1", "inst-1"))
	enrollStudent(f.enrollments, "course-1", "stu-1")

	submission, err := f.svc.Submit(context.Background(), "hw-1", studentClaims("stu-1"), SubmitRequest{Content: "plain text"})
	require.NoError(t, err)

	_, _, err = f.svc.FileLink(context.Background(), submission.ID, studentClaims("stu-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSubmissionFileLinkForeignLearnerForbidden(t *testing.T) {
	f := newSubmissionFixture(textHomework("hw-1", "course-1"), publishedCourse("course-1", "inst-1"))
	enrollStudent(f.enrollments, "course-1", "stu-1")
	fileKey := "submissions/answer.pdf"

	submission, err := f.svc.Submit(context.Background(), "hw-1", studentClaims("stu-1"), SubmitRequest{Content: "see attachment", FileKey: &fileKey})
	require.NoError(t, err)

	_, _, err = f.svc.FileLink(context.Background(), submission.ID, studentClaims("stu-2"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, _, err = f.svc.FileLink(context.Background(), submission.ID, instructorClaims("inst-2"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSubmissionUploadThenSubmitPromotes(t *testing.T) {
	f := newSubmissionFixture(textHomework("hw-1", "course-1"), publishedCourse("course-1", "inst-1"))
	enrollStudent(f.enrollments, "course-1", "stu-1")

	key, err := f.svc.UploadFile(context.Background(), studentClaims("stu-1"), "essay.pdf", strings.NewReader("my essay"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "staging/submissions/"))
	assert.True(t, strings.HasSuffix(key, ".pdf"))

	submission, err := f.svc.Submit(context.Background(), "hw-1", studentClaims("stu-1"), SubmitRequest{Content: "see attachment", FileKey: &key})
	require.NoError(t, err)
	require.NotNil(t, submission.FileKey)
	assert.True(t, strings.HasPrefix(*submission.FileKey, "submissions/"))
	assert.Equal(t, *submission.FileKey, f.files.promoted[key])
	assert.Equal(t, "my essay", f.files.saved[*submission.FileKey])
}

func TestSubmissionGradedResubmitLeavesFileStaged(t *testing.T) {
	f := newSubmissionFixture(textHomework("hw-1", "course-1"), publishedCourse("course-1", "inst-1"))
	enrollStudent(f.enrollments, "course-1", "stu-1")

	first, err := f.svc.Submit(context.Background(), "hw-1", studentClaims("stu-1"), SubmitRequest{Content: "answer"})
	require.NoError(t, err)
	require.NoError(t, f.repo.Grade(context.Background(), first.ID, 90, "well done"))

	key, err := f.svc.UploadFile(context.Background(), studentClaims("stu-1"), "late.pdf", strings.NewReader("late work"))
	require.NoError(t, err)

	_, err = f.svc.Submit(context.Background(), "hw-1", studentClaims("stu-1"), SubmitRequest{Content: "again", FileKey: &key})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	// The refused upload stays under staging/ where the cleanup sweep
	// can still reclaim it.
	assert.Empty(t, f.files.promoted)
	assert.Equal(t, "late work", f.files.saved[key])
}

func TestSubmissionUploadRequiresFileName(t *testing.T) {
	f := newSubmissionFixture(textHomework("hw-1", "course-1"), publishedCourse("course-1", "inst-1"))

	_, err := f.svc.UploadFile(context.Background(), studentClaims("stu-1"), "", strings.NewReader("data"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
