package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub-api/internal/models"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
)

type mockMessageRepo struct {
	created []models.Message
	unread  int
}

func (m *mockMessageRepo) Create(ctx context.Context, message *models.Message) error {
	if message.ID == "" {
		message.ID = "msg-1"
	}
	m.created = append(m.created, *message)
	return nil
}

func (m *mockMessageRepo) ListThread(ctx context.Context, courseID, userA, userB string) ([]models.MessageDetail, error) {
	return nil, nil
}

func (m *mockMessageRepo) MarkThreadRead(ctx context.Context, courseID, recipientID, senderID string) error {
	return nil
}

func (m *mockMessageRepo) CountUnread(ctx context.Context, recipientID string) (int, error) {
	return m.unread, nil
}

// mockCourseLinks answers the enrollment-link check with a fixed set of
// course/user pairs.
type mockCourseLinks struct {
	linked map[string]bool
}

func (m *mockCourseLinks) HasActiveLink(ctx context.Context, courseID, userID string) (bool, error) {
	return m.linked[courseID+"/"+userID], nil
}

func newMessageFixture() (*mockMessageRepo, *MessageService) {
	repo := &mockMessageRepo{}
	courses := &mockCourseReader{courses: map[string]*models.Course{
		"course-1": {ID: "course-1", Title: "Algebra Basics", InstructorID: "inst-1"},
	}}
	users := &mockUserReader{users: map[string]*models.User{
		"inst-1": {ID: "inst-1", Role: models.RoleInstructor},
		"stu-1":  {ID: "stu-1", Role: models.RoleStudent},
		"stu-2":  {ID: "stu-2", Role: models.RoleStudent},
	}}
	links := &mockCourseLinks{linked: map[string]bool{"course-1/stu-1": true}}
	svc := NewMessageService(repo, courses, users, links, nil, 0, nil, nil)
	return repo, svc
}

func studentMessageClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleStudent}
}

func TestMessageSendInstructorToEnrolledStudent(t *testing.T) {
	repo, svc := newMessageFixture()

	message, err := svc.Send(context.Background(), instructorClaims("inst-1"), SendMessageRequest{
		CourseID:    "course-1",
		RecipientID: "stu-1",
		Body:        "How is the homework going?",
	})
	require.NoError(t, err)
	assert.Equal(t, "inst-1", message.SenderID)
	require.Len(t, repo.created, 1)
}

func TestMessageSendEnrolledStudentToInstructor(t *testing.T) {
	_, svc := newMessageFixture()

	_, err := svc.Send(context.Background(), studentMessageClaims("stu-1"), SendMessageRequest{
		CourseID:    "course-1",
		RecipientID: "inst-1",
		Body:        "Stuck on problem three.",
	})
	require.NoError(t, err)
}

func TestMessageSendUnenrolledStudentForbidden(t *testing.T) {
	repo, svc := newMessageFixture()

	_, err := svc.Send(context.Background(), studentMessageClaims("stu-2"), SendMessageRequest{
		CourseID:    "course-1",
		RecipientID: "inst-1",
		Body:        "Hello?",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestMessageSendToUnenrolledStudentForbidden(t *testing.T) {
	repo, svc := newMessageFixture()

	_, err := svc.Send(context.Background(), instructorClaims("inst-1"), SendMessageRequest{
		CourseID:    "course-1",
		RecipientID: "stu-2",
		Body:        "You are not on this roster.",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestMessageSendWithoutInstructorSideForbidden(t *testing.T) {
	_, svc := newMessageFixture()

	_, err := svc.Send(context.Background(), studentMessageClaims("stu-1"), SendMessageRequest{
		CourseID:    "course-1",
		RecipientID: "stu-2",
		Body:        "Psst.",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestMessageSendToSelfRejected(t *testing.T) {
	_, svc := newMessageFixture()

	_, err := svc.Send(context.Background(), instructorClaims("inst-1"), SendMessageRequest{
		CourseID:    "course-1",
		RecipientID: "inst-1",
		Body:        "Note to self.",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
