package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/coursehub/coursehub-api/internal/models"
)

// MessageRepository handles persistence of course messages.
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository constructs the repository.
func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create persists a new message.
func (r *MessageRepository) Create(ctx context.Context, message *models.Message) error {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	message.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO messages (id, course_id, sender_id, recipient_id, body, read, created_at)
        VALUES (:id, :course_id, :sender_id, :recipient_id, :body, :read, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, message); err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

// FindByID returns a message by its ID.
func (r *MessageRepository) FindByID(ctx context.Context, id string) (*models.Message, error) {
	const query = `SELECT id, course_id, sender_id, recipient_id, body, read, created_at FROM messages WHERE id = $1`
	var message models.Message
	if err := r.db.GetContext(ctx, &message, query, id); err != nil {
		return nil, err
	}
	return &message, nil
}

// ListThread returns the conversation between two users within a course,
// oldest first.
func (r *MessageRepository) ListThread(ctx context.Context, courseID, userA, userB string) ([]models.MessageDetail, error) {
	const query = `SELECT m.id, m.course_id, m.sender_id, m.recipient_id, m.body, m.read, m.created_at,
        COALESCE(u.full_name, '') AS sender_name
        FROM messages m
        LEFT JOIN users u ON u.id = m.sender_id
        WHERE m.course_id = $1
          AND ((m.sender_id = $2 AND m.recipient_id = $3) OR (m.sender_id = $3 AND m.recipient_id = $2))
        ORDER BY m.created_at`
	var messages []models.MessageDetail
	if err := r.db.SelectContext(ctx, &messages, query, courseID, userA, userB); err != nil {
		return nil, fmt.Errorf("list thread: %w", err)
	}
	return messages, nil
}

// MarkThreadRead flags every message addressed to the user in the thread as read.
func (r *MessageRepository) MarkThreadRead(ctx context.Context, courseID, recipientID, senderID string) error {
	const query = `UPDATE messages SET read = TRUE
        WHERE course_id = $1 AND recipient_id = $2 AND sender_id = $3 AND read = FALSE`
	if _, err := r.db.ExecContext(ctx, query, courseID, recipientID, senderID); err != nil {
		return fmt.Errorf("mark thread read: %w", err)
	}
	return nil
}

// CountUnread returns the number of unread messages addressed to the user.
func (r *MessageRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM messages WHERE recipient_id = $1 AND read = FALSE`, recipientID); err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}
