package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medconsult-app/medconsult-api/internal/service"
	appErrors "github.com/medconsult-app/medconsult-api/pkg/errors"
	"github.com/medconsult-app/medconsult-api/pkg/response"
)

// AvailabilityHandler wires the doctor's schedule-editing endpoints.
type AvailabilityHandler struct {
	service *service.AvailabilityService
}

// NewAvailabilityHandler creates a new handler.
func NewAvailabilityHandler(svc *service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: svc}
}

// ListWindows godoc
// @Summary List availability windows
// @Description List the authenticated doctor's availability windows
// @Tags Availability
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Security BearerAuth
// @Router /availability [get]
func (h *AvailabilityHandler) ListWindows(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	windows, err := h.service.ListWindows(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, windows, nil)
}

// UpsertWindow godoc
// @Summary Set availability window
// @Description Replace the doctor's working window for a date
// @Tags Availability
// @Accept json
// @Produce json
// @Param payload body service.UpsertWindowRequest true "Window payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /availability [put]
func (h *AvailabilityHandler) UpsertWindow(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpsertWindowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid window payload"))
		return
	}

	window, err := h.service.UpsertWindow(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, window, nil)
}

// DeleteSlot godoc
// @Summary Remove one bookable slot
// @Description Carve a single 30-minute slot out of the doctor's window
// @Tags Availability
// @Accept json
// @Produce json
// @Param payload body service.DeleteSlotRequest true "Slot payload"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /availability/slot [delete]
func (h *AvailabilityHandler) DeleteSlot(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.DeleteSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid slot payload"))
		return
	}

	if err := h.service.DeleteSlot(c.Request.Context(), claims.UserID, req); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
