package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coursehub/coursehub-api/internal/service"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
	"github.com/coursehub/coursehub-api/pkg/response"
)

// MessageHandler exposes course-scoped messaging endpoints.
type MessageHandler struct {
	messages *service.MessageService
}

// NewMessageHandler constructs MessageHandler.
func NewMessageHandler(messages *service.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// Send godoc
// @Summary Send a message within a course
// @Tags Messages
// @Accept json
// @Produce json
// @Param payload body service.SendMessageRequest true "Message payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /messages [post]
func (h *MessageHandler) Send(c *gin.Context) {
	var req service.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid message payload"))
		return
	}
	message, err := h.messages.Send(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, message)
}

// Thread godoc
// @Summary Read a conversation, marking it read
// @Tags Messages
// @Produce json
// @Param id path string true "Course ID"
// @Param with query string true "Other participant"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/messages [get]
func (h *MessageHandler) Thread(c *gin.Context) {
	otherID := c.Query("with")
	if otherID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "query parameter 'with' is required"))
		return
	}
	messages, err := h.messages.Thread(c.Request.Context(), claimsFromContext(c), c.Param("id"), otherID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, messages, nil)
}

// Unread godoc
// @Summary Get the unread message count
// @Tags Messages
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /messages/unread-count [get]
func (h *MessageHandler) Unread(c *gin.Context) {
	claims := claimsFromContext(c)
	count, err := h.messages.Unread(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, count, nil)
}
