package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/medconsult-app/medconsult-api/internal/models"
	"github.com/medconsult-app/medconsult-api/internal/service"
	appErrors "github.com/medconsult-app/medconsult-api/pkg/errors"
	"github.com/medconsult-app/medconsult-api/pkg/response"
)

// PrescriptionHandler wires prescription and export endpoints.
type PrescriptionHandler struct {
	service *service.PrescriptionService
}

// NewPrescriptionHandler creates a new handler.
func NewPrescriptionHandler(svc *service.PrescriptionService) *PrescriptionHandler {
	return &PrescriptionHandler{service: svc}
}

// Create godoc
// @Summary Issue a prescription
// @Description Issue a prescription from the authenticated doctor to a patient
// @Tags Prescriptions
// @Accept json
// @Produce json
// @Param payload body service.CreatePrescriptionRequest true "Prescription payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /prescriptions [post]
func (h *PrescriptionHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreatePrescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid prescription payload"))
		return
	}

	p, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, p)
}

// List godoc
// @Summary List prescriptions
// @Description List prescriptions visible to the caller
// @Tags Prescriptions
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Security BearerAuth
// @Router /prescriptions [get]
func (h *PrescriptionHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	list, err := h.service.List(c.Request.Context(), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, list, nil)
}

// SetStatus godoc
// @Summary Update prescription status
// @Description Flip a prescription between active and completed
// @Tags Prescriptions
// @Accept json
// @Produce json
// @Param id path string true "Prescription ID"
// @Param payload body object true "Status payload"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /prescriptions/{id}/status [put]
func (h *PrescriptionHandler) SetStatus(c *gin.Context) {
	var payload struct {
		Status models.PrescriptionStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "status is required"))
		return
	}

	if err := h.service.SetStatus(c.Request.Context(), c.Param("id"), payload.Status); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Export godoc
// @Summary Export prescription history
// @Description Download the caller's prescription history as CSV or PDF
// @Tags Prescriptions
// @Produce octet-stream
// @Param format query string true "Export format (csv|pdf)"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /prescriptions/export [get]
func (h *PrescriptionHandler) Export(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	stamp := time.Now().UTC().Format("20060102-150405")
	switch c.Query("format") {
	case "csv":
		data, err := h.service.ExportCSV(c.Request.Context(), claims.UserID, claims.Role)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="prescriptions-%s.csv"`, stamp))
		c.Data(http.StatusOK, "text/csv", data)
	case "pdf":
		data, err := h.service.ExportPDF(c.Request.Context(), claims.UserID, claims.Role)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="prescriptions-%s.pdf"`, stamp))
		c.Data(http.StatusOK, "application/pdf", data)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
	}
}
