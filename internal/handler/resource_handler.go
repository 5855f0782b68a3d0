package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/coursehub/coursehub-api/internal/service"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
	"github.com/coursehub/coursehub-api/pkg/response"
)

// ResourceHandler exposes course material endpoints.
type ResourceHandler struct {
	resources   *service.ResourceService
	maxFileSize int64
}

// NewResourceHandler constructs ResourceHandler.
func NewResourceHandler(resources *service.ResourceService, maxFileSize int64) *ResourceHandler {
	if maxFileSize <= 0 {
		maxFileSize = 20 * 1024 * 1024
	}
	return &ResourceHandler{resources: resources, maxFileSize: maxFileSize}
}

// ListByCourse godoc
// @Summary List resources of a course
// @Tags Resources
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/resources [get]
func (h *ResourceHandler) ListByCourse(c *gin.Context) {
	resources, err := h.resources.ListByCourse(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resources, nil)
}

// CreateLink godoc
// @Summary Attach a link resource to a course
// @Tags Resources
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body service.LinkResourceRequest true "Link payload"
// @Success 201 {object} response.Envelope
// @Router /courses/{id}/resources [post]
func (h *ResourceHandler) CreateLink(c *gin.Context) {
	var req service.LinkResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid resource payload"))
		return
	}
	resource, err := h.resources.CreateLink(c.Request.Context(), c.Param("id"), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resource)
}

// Upload godoc
// @Summary Upload a file resource to a course
// @Tags Resources
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Course ID"
// @Param title formData string true "Resource title"
// @Param visible formData bool false "Visible to learners"
// @Param file formData file true "File"
// @Success 201 {object} response.Envelope
// @Router /courses/{id}/resources/upload [post]
func (h *ResourceHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxFileSize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, formFileError(err))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read uploaded file"))
		return
	}
	defer file.Close()

	visible, _ := strconv.ParseBool(c.DefaultPostForm("visible", "true"))
	req := service.FileResourceRequest{
		Title:    c.PostForm("title"),
		FileName: fileHeader.Filename,
		Visible:  visible,
		Body:     file,
	}
	resource, err := h.resources.UploadFile(c.Request.Context(), c.Param("id"), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resource)
}

// Update godoc
// @Summary Update a resource
// @Tags Resources
// @Accept json
// @Produce json
// @Param id path string true "Resource ID"
// @Param payload body service.LinkResourceRequest true "Resource payload"
// @Success 200 {object} response.Envelope
// @Router /resources/{id} [put]
func (h *ResourceHandler) Update(c *gin.Context) {
	var req service.LinkResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid resource payload"))
		return
	}
	resource, err := h.resources.Update(c.Request.Context(), c.Param("id"), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resource, nil)
}

// Delete godoc
// @Summary Delete a resource
// @Tags Resources
// @Produce json
// @Param id path string true "Resource ID"
// @Success 204 {object} response.Envelope
// @Router /resources/{id} [delete]
func (h *ResourceHandler) Delete(c *gin.Context) {
	if err := h.resources.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
