package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coursehub/coursehub-api/internal/service"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
	"github.com/coursehub/coursehub-api/pkg/response"
)

// HomeworkHandler exposes homework endpoints.
type HomeworkHandler struct {
	homeworks *service.HomeworkService
}

// NewHomeworkHandler constructs HomeworkHandler.
func NewHomeworkHandler(homeworks *service.HomeworkService) *HomeworkHandler {
	return &HomeworkHandler{homeworks: homeworks}
}

// ListByCourse godoc
// @Summary List homeworks of a course
// @Tags Homeworks
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/homeworks [get]
func (h *HomeworkHandler) ListByCourse(c *gin.Context) {
	homeworks, err := h.homeworks.ListByCourse(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, homeworks, nil)
}

// Get godoc
// @Summary Get a homework
// @Tags Homeworks
// @Produce json
// @Param id path string true "Homework ID"
// @Success 200 {object} response.Envelope
// @Router /homeworks/{id} [get]
func (h *HomeworkHandler) Get(c *gin.Context) {
	homework, err := h.homeworks.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, homework, nil)
}

// Create godoc
// @Summary Create a homework
// @Tags Homeworks
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body service.HomeworkRequest true "Homework payload"
// @Success 201 {object} response.Envelope
// @Router /courses/{id}/homeworks [post]
func (h *HomeworkHandler) Create(c *gin.Context) {
	var req service.HomeworkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid homework payload"))
		return
	}
	homework, err := h.homeworks.Create(c.Request.Context(), c.Param("id"), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, homework)
}

// Update godoc
// @Summary Update a homework
// @Tags Homeworks
// @Accept json
// @Produce json
// @Param id path string true "Homework ID"
// @Param payload body service.HomeworkRequest true "Homework payload"
// @Success 200 {object} response.Envelope
// @Router /homeworks/{id} [put]
func (h *HomeworkHandler) Update(c *gin.Context) {
	var req service.HomeworkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid homework payload"))
		return
	}
	homework, err := h.homeworks.Update(c.Request.Context(), c.Param("id"), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, homework, nil)
}

// Delete godoc
// @Summary Delete a homework
// @Tags Homeworks
// @Produce json
// @Param id path string true "Homework ID"
// @Success 204 {object} response.Envelope
// @Router /homeworks/{id} [delete]
func (h *HomeworkHandler) Delete(c *gin.Context) {
	if err := h.homeworks.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
