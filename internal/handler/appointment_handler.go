package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medconsult-app/medconsult-api/internal/service"
	appErrors "github.com/medconsult-app/medconsult-api/pkg/errors"
	"github.com/medconsult-app/medconsult-api/pkg/response"
)

// AppointmentHandler wires booking and calendar endpoints.
type AppointmentHandler struct {
	service    *service.AppointmentService
	reschedule *service.RescheduleService
}

// NewAppointmentHandler creates a new handler.
func NewAppointmentHandler(svc *service.AppointmentService, reschedule *service.RescheduleService) *AppointmentHandler {
	return &AppointmentHandler{service: svc, reschedule: reschedule}
}

// ListSlots godoc
// @Summary List bookable slots
// @Description List a doctor's open 30-minute slots on a date
// @Tags Appointments
// @Produce json
// @Param id path string true "Doctor ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param tz query string false "IANA timezone"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /doctors/{id}/slots [get]
func (h *AppointmentHandler) ListSlots(c *gin.Context) {
	req := service.ListSlotsRequest{
		DoctorID: c.Param("id"),
		Date:     c.Query("date"),
		Timezone: c.Query("tz"),
	}

	slots, err := h.service.ListSlots(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, slots, nil)
}

// CreateBlock godoc
// @Summary Book appointment slots
// @Description Book one or more slots with a doctor; occupied slots are skipped
// @Tags Appointments
// @Accept json
// @Produce json
// @Param payload body service.CreateBlockRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /appointments [post]
func (h *AppointmentHandler) CreateBlock(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking payload"))
		return
	}

	result, err := h.service.CreateBlock(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListBlocks godoc
// @Summary List appointments
// @Description List the caller's appointments grouped into contiguous blocks
// @Tags Appointments
// @Produce json
// @Param tz query string false "IANA timezone"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Security BearerAuth
// @Router /appointments [get]
func (h *AppointmentHandler) ListBlocks(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	blocks, err := h.service.ListBlocks(c.Request.Context(), claims.UserID, claims.Role, c.Query("tz"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, blocks, nil)
}

// BulkSetStatus godoc
// @Summary Update appointment statuses
// @Description Apply a status decision to a set of the doctor's slots
// @Tags Appointments
// @Accept json
// @Produce json
// @Param payload body service.BulkStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /appointments/status [post]
func (h *AppointmentHandler) BulkSetStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.BulkStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}

	updated, err := h.service.BulkSetStatus(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"updated": updated}, nil)
}

// CancelSlots godoc
// @Summary Cancel appointment slots
// @Description Cancel a set of the doctor's booked slots
// @Tags Appointments
// @Accept json
// @Produce json
// @Param payload body service.CancelSlotsRequest true "Cancel payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /appointments/cancel [post]
func (h *AppointmentHandler) CancelSlots(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CancelSlotsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid cancel payload"))
		return
	}

	cancelled, err := h.service.CancelSlots(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"cancelled": cancelled}, nil)
}

// RequestReschedule godoc
// @Summary Request a reschedule
// @Description Ask to move an existing appointment block to a new start
// @Tags Appointments
// @Accept json
// @Produce json
// @Param payload body service.RescheduleRequest true "Reschedule payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /appointments/reschedule [post]
func (h *AppointmentHandler) RequestReschedule(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reschedule payload"))
		return
	}

	placeholder, err := h.reschedule.Request(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, placeholder)
}

// DecideReschedule godoc
// @Summary Decide a reschedule request
// @Description Approve, reject, or cancel a pending reschedule
// @Tags Appointments
// @Accept json
// @Produce json
// @Param id path string true "Appointment ID"
// @Param payload body object true "Decision payload"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /appointments/reschedule/{id}/decision [post]
func (h *AppointmentHandler) DecideReschedule(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Decision service.RescheduleDecision `json:"decision" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "decision is required"))
		return
	}

	if err := h.reschedule.Decide(c.Request.Context(), claims.UserID, c.Param("id"), payload.Decision); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
