package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coursehub/coursehub-api/internal/service"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
	"github.com/coursehub/coursehub-api/pkg/response"
)

// StudentProfileHandler exposes parent-managed child profile endpoints.
type StudentProfileHandler struct {
	profiles *service.StudentProfileService
}

// NewStudentProfileHandler constructs StudentProfileHandler.
func NewStudentProfileHandler(profiles *service.StudentProfileService) *StudentProfileHandler {
	return &StudentProfileHandler{profiles: profiles}
}

// Create godoc
// @Summary Create a student profile
// @Tags Student profiles
// @Accept json
// @Produce json
// @Param payload body service.StudentProfileRequest true "Profile payload"
// @Success 201 {object} response.Envelope
// @Router /student-profiles [post]
func (h *StudentProfileHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	var req service.StudentProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	profile, err := h.profiles.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, profile)
}

// List godoc
// @Summary List own student profiles
// @Tags Student profiles
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /student-profiles [get]
func (h *StudentProfileHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	profiles, err := h.profiles.List(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profiles, nil)
}

// Get godoc
// @Summary Get a student profile
// @Tags Student profiles
// @Produce json
// @Param id path string true "Profile ID"
// @Success 200 {object} response.Envelope
// @Router /student-profiles/{id} [get]
func (h *StudentProfileHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	profile, err := h.profiles.Get(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// Update godoc
// @Summary Update a student profile
// @Tags Student profiles
// @Accept json
// @Produce json
// @Param id path string true "Profile ID"
// @Param payload body service.StudentProfileRequest true "Profile payload"
// @Success 200 {object} response.Envelope
// @Router /student-profiles/{id} [put]
func (h *StudentProfileHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	var req service.StudentProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	profile, err := h.profiles.Update(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// Delete godoc
// @Summary Delete a student profile
// @Tags Student profiles
// @Produce json
// @Param id path string true "Profile ID"
// @Success 204 {object} response.Envelope
// @Router /student-profiles/{id} [delete]
func (h *StudentProfileHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if err := h.profiles.Delete(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
