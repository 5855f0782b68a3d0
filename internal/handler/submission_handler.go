package handler

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/coursehub/coursehub-api/internal/models"
	"github.com/coursehub/coursehub-api/internal/service"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
	"github.com/coursehub/coursehub-api/pkg/response"
)

// SubmissionHandler exposes homework hand-in and grading endpoints.
type SubmissionHandler struct {
	submissions  *service.SubmissionService
	downloadBase string
	maxFileSize  int64
}

// NewSubmissionHandler constructs SubmissionHandler. downloadBase is the
// absolute URL prefix under which Download is mounted.
func NewSubmissionHandler(submissions *service.SubmissionService, downloadBase string, maxFileSize int64) *SubmissionHandler {
	if maxFileSize <= 0 {
		maxFileSize = 20 * 1024 * 1024
	}
	return &SubmissionHandler{submissions: submissions, downloadBase: strings.TrimRight(downloadBase, "/"), maxFileSize: maxFileSize}
}

// Submit godoc
// @Summary Hand in an answer for a homework
// @Tags Submissions
// @Accept json
// @Produce json
// @Param id path string true "Homework ID"
// @Param payload body service.SubmitRequest true "Submission payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /homeworks/{id}/submissions [post]
func (h *SubmissionHandler) Submit(c *gin.Context) {
	var req service.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid submission payload"))
		return
	}
	submission, err := h.submissions.Submit(c.Request.Context(), c.Param("id"), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, submission)
}

// Mine godoc
// @Summary Get own submission for a homework
// @Tags Submissions
// @Produce json
// @Param id path string true "Homework ID"
// @Param student_profile_id query string false "Managed profile"
// @Success 200 {object} response.Envelope
// @Router /homeworks/{id}/submissions/mine [get]
func (h *SubmissionHandler) Mine(c *gin.Context) {
	var profileID *string
	if value := c.Query("student_profile_id"); value != "" {
		profileID = &value
	}
	submission, err := h.submissions.GetMine(c.Request.Context(), c.Param("id"), claimsFromContext(c), profileID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// ListByHomework godoc
// @Summary List all submissions of a homework
// @Tags Submissions
// @Produce json
// @Param id path string true "Homework ID"
// @Success 200 {object} response.Envelope
// @Router /homeworks/{id}/submissions [get]
func (h *SubmissionHandler) ListByHomework(c *gin.Context) {
	submissions, err := h.submissions.ListByHomework(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submissions, nil)
}

// Upload godoc
// @Summary Stage a file for a submission
// @Tags Submissions
// @Accept mpfd
// @Produce json
// @Param file formData file true "Submission attachment"
// @Success 201 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /submissions/files [post]
func (h *SubmissionHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxFileSize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, formFileError(err))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to read uploaded file"))
		return
	}
	defer file.Close() //nolint:errcheck

	key, err := h.submissions.UploadFile(c.Request.Context(), claimsFromContext(c), fileHeader.Filename, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"file_key": key})
}

// FileLink godoc
// @Summary Get a time-limited download link for a submission's file
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /submissions/{id}/file [get]
func (h *SubmissionHandler) FileLink(c *gin.Context) {
	token, expiresAt, err := h.submissions.FileLink(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	link := models.SubmissionFileLink{
		URL:       fmt.Sprintf("%s/files/%s", h.downloadBase, token),
		ExpiresAt: expiresAt,
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// Download godoc
// @Summary Download a submission file via a signed token
// @Tags Submissions
// @Produce octet-stream
// @Param token path string true "Download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /files/{token} [get]
func (h *SubmissionHandler) Download(c *gin.Context) {
	file, key, err := h.submissions.OpenFile(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, err)
		return
	}
	name := filepath.Base(key)
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
}

// Grade godoc
// @Summary Grade a submission
// @Tags Submissions
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body service.GradeRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/grade [post]
func (h *SubmissionHandler) Grade(c *gin.Context) {
	var req service.GradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid grade payload"))
		return
	}
	submission, err := h.submissions.Grade(c.Request.Context(), c.Param("id"), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}
