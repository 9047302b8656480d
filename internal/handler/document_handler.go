package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medconsult-app/medconsult-api/internal/models"
	"github.com/medconsult-app/medconsult-api/internal/service"
	appErrors "github.com/medconsult-app/medconsult-api/pkg/errors"
	"github.com/medconsult-app/medconsult-api/pkg/response"
)

// DocumentHandler wires patient-document upload and download endpoints.
type DocumentHandler struct {
	service *service.PrescriptionService
}

// NewDocumentHandler creates a new handler.
func NewDocumentHandler(svc *service.PrescriptionService) *DocumentHandler {
	return &DocumentHandler{service: svc}
}

// Upload godoc
// @Summary Upload a document
// @Description Attach a file to a patient record
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File to upload"
// @Param owner_user_id formData string true "Owner user ID"
// @Param document_type formData string true "Document type"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	ownerID := c.PostForm("owner_user_id")
	if ownerID == "" {
		ownerID = claims.UserID
	}

	f, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to read upload"))
		return
	}
	defer f.Close()

	doc, err := h.service.UploadDocument(c.Request.Context(), claims.UserID, claims.Role, service.UploadDocumentRequest{
		OwnerUserID:  ownerID,
		FileName:     fileHeader.Filename,
		DocumentType: models.DocumentType(c.PostForm("document_type")),
	}, f, fileHeader.Size)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, doc)
}

// List godoc
// @Summary List documents
// @Description List documents owned by a user
// @Tags Documents
// @Produce json
// @Param owner query string false "Owner user ID (defaults to caller)"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	ownerID := c.Query("owner")
	if ownerID == "" {
		ownerID = claims.UserID
	}

	docs, err := h.service.ListDocuments(c.Request.Context(), claims.UserID, claims.Role, ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, docs, nil)
}

// SignURL godoc
// @Summary Issue a download link
// @Description Issue a time-limited signed download token for a document
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /documents/{id}/url [get]
func (h *DocumentHandler) SignURL(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	signed, err := h.service.SignDocumentURL(c.Request.Context(), claims.UserID, claims.Role, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, signed, nil)
}

// Download godoc
// @Summary Download a document
// @Description Stream a document referenced by a signed token
// @Tags Documents
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /documents/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	doc, path, err := h.service.ResolveDocumentToken(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.FileAttachment(path, doc.FileName)
}
