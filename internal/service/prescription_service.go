package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medconsult-app/medconsult-api/internal/models"
	appErrors "github.com/medconsult-app/medconsult-api/pkg/errors"
	"github.com/medconsult-app/medconsult-api/pkg/export"
	"github.com/medconsult-app/medconsult-api/pkg/storage"
)

type prescriptionRepository interface {
	Create(ctx context.Context, p *models.Prescription) error
	ListByPatient(ctx context.Context, patientID string) ([]models.Prescription, error)
	ListByDoctor(ctx context.Context, doctorID string) ([]models.Prescription, error)
	ListAll(ctx context.Context) ([]models.Prescription, error)
	UpdateStatus(ctx context.Context, id string, status models.PrescriptionStatus) error
	CreateDocument(ctx context.Context, doc *models.Document) error
	FindDocumentByID(ctx context.Context, id string) (*models.Document, error)
	ListDocumentsByOwner(ctx context.Context, ownerID string) ([]models.Document, error)
}

// CreatePrescriptionRequest issues a prescription to a patient.
type CreatePrescriptionRequest struct {
	PatientID string `json:"patient_id" validate:"required,uuid4"`
	Title     string `json:"title" validate:"required"`
	Notes     string `json:"notes" validate:"required"`
}

// UploadDocumentRequest attaches a file to a patient record.
type UploadDocumentRequest struct {
	OwnerUserID  string
	FileName     string
	DocumentType models.DocumentType
}

// SignedDocumentURL is a time-limited download reference.
type SignedDocumentURL struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PrescriptionService manages prescriptions, patient documents, and tabular
// exports of a user's prescription history.
type PrescriptionService struct {
	repo      prescriptionRepository
	store     *storage.LocalStorage
	signer    *storage.SignedURLSigner
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
	maxUpload int64
}

// NewPrescriptionService constructs a PrescriptionService.
func NewPrescriptionService(
	repo prescriptionRepository,
	store *storage.LocalStorage,
	signer *storage.SignedURLSigner,
	validate *validator.Validate,
	logger *zap.Logger,
	maxUpload int64,
) *PrescriptionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &PrescriptionService{
		repo:      repo,
		store:     store,
		signer:    signer,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
		maxUpload: maxUpload,
	}
}

// Create issues a new active prescription from the doctor to the patient.
func (s *PrescriptionService) Create(ctx context.Context, doctorID string, req CreatePrescriptionRequest) (*models.Prescription, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid prescription payload")
	}
	p := &models.Prescription{
		PatientID: req.PatientID,
		DoctorID:  doctorID,
		Title:     req.Title,
		Notes:     req.Notes,
		Status:    models.PrescriptionActive,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store prescription")
	}
	return p, nil
}

// List returns the prescriptions visible to the user: their own for patients,
// their issued ones for doctors, everything for admins.
func (s *PrescriptionService) List(ctx context.Context, userID string, role models.UserRole) ([]models.Prescription, error) {
	var (
		list []models.Prescription
		err  error
	)
	switch role {
	case models.RoleDoctor:
		list, err = s.repo.ListByDoctor(ctx, userID)
	case models.RoleAdmin:
		list, err = s.repo.ListAll(ctx)
	default:
		list, err = s.repo.ListByPatient(ctx, userID)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list prescriptions")
	}
	return list, nil
}

// SetStatus flips a prescription between active and completed.
func (s *PrescriptionService) SetStatus(ctx context.Context, id string, status models.PrescriptionStatus) error {
	if status != models.PrescriptionActive && status != models.PrescriptionCompleted {
		return appErrors.Clone(appErrors.ErrValidation, "invalid prescription status")
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "prescription not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update prescription")
	}
	return nil
}

var prescriptionExportHeaders = []string{"ID", "Patient", "Doctor", "Title", "Notes", "Status", "Issued"}

func prescriptionDataset(list []models.Prescription) export.Dataset {
	rows := make([]map[string]string, 0, len(list))
	for _, p := range list {
		rows = append(rows, map[string]string{
			"ID":      p.ID,
			"Patient": p.PatientID,
			"Doctor":  p.DoctorID,
			"Title":   p.Title,
			"Notes":   p.Notes,
			"Status":  string(p.Status),
			"Issued":  p.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	return export.Dataset{Headers: prescriptionExportHeaders, Rows: rows}
}

// ExportCSV renders the user's prescription history as CSV.
func (s *PrescriptionService) ExportCSV(ctx context.Context, userID string, role models.UserRole) ([]byte, error) {
	list, err := s.List(ctx, userID, role)
	if err != nil {
		return nil, err
	}
	data, err := s.csv.Render(prescriptionDataset(list))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return data, nil
}

// ExportPDF renders the user's prescription history as a PDF table.
func (s *PrescriptionService) ExportPDF(ctx context.Context, userID string, role models.UserRole) ([]byte, error) {
	list, err := s.List(ctx, userID, role)
	if err != nil {
		return nil, err
	}
	data, err := s.pdf.Render(prescriptionDataset(list), "Prescription History")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
	}
	return data, nil
}

// UploadDocument stores an uploaded file and its record. Doctors may upload
// to their patients' records, patients only to their own.
func (s *PrescriptionService) UploadDocument(ctx context.Context, uploaderID string, uploaderRole models.UserRole, req UploadDocumentRequest, r io.Reader, size int64) (*models.Document, error) {
	if s.store == nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "document storage is not configured")
	}
	if !models.ValidDocumentType(req.DocumentType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid document type")
	}
	if size > s.maxUpload {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file exceeds maximum upload size")
	}
	if uploaderRole == models.RolePatient && req.OwnerUserID != uploaderID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "patients may only upload to their own record")
	}

	id := uuid.NewString()
	stored := fmt.Sprintf("%s%s", id, filepath.Ext(req.FileName))
	path, err := s.store.SaveStream(stored, io.LimitReader(r, s.maxUpload))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	doc := &models.Document{
		ID:           id,
		OwnerUserID:  req.OwnerUserID,
		UploadedByID: uploaderID,
		UploaderRole: uploaderRole,
		FileName:     req.FileName,
		FilePath:     path,
		DocumentType: req.DocumentType,
	}
	if err := s.repo.CreateDocument(ctx, doc); err != nil {
		if delErr := s.store.Delete(stored); delErr != nil {
			s.logger.Warn("failed to remove orphaned upload", zap.String("file", stored), zap.Error(delErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document record")
	}
	return doc, nil
}

// ListDocuments returns the documents owned by ownerID, visible to the owner,
// any doctor, or an admin.
func (s *PrescriptionService) ListDocuments(ctx context.Context, requesterID string, requesterRole models.UserRole, ownerID string) ([]models.Document, error) {
	if requesterRole == models.RolePatient && requesterID != ownerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot view another patient's documents")
	}
	docs, err := s.repo.ListDocumentsByOwner(ctx, ownerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	return docs, nil
}

// SignDocumentURL issues a time-limited download token for a document.
func (s *PrescriptionService) SignDocumentURL(ctx context.Context, requesterID string, requesterRole models.UserRole, documentID string) (*SignedDocumentURL, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "document downloads are not configured")
	}
	doc, err := s.repo.FindDocumentByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if requesterRole == models.RolePatient && doc.OwnerUserID != requesterID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot access another patient's document")
	}

	token, expiresAt, err := s.signer.Generate(doc.ID, doc.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}
	return &SignedDocumentURL{Token: token, ExpiresAt: expiresAt}, nil
}

// ResolveDocumentToken validates a download token and opens the backing file.
func (s *PrescriptionService) ResolveDocumentToken(ctx context.Context, token string) (*models.Document, string, error) {
	if s.signer == nil {
		return nil, "", appErrors.Clone(appErrors.ErrInvalidState, "document downloads are not configured")
	}
	documentID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	doc, err := s.repo.FindDocumentByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if doc.FilePath != relPath {
		return nil, "", appErrors.Clone(appErrors.ErrUnauthorized, "token does not match document")
	}
	return doc, s.store.Path(doc.FilePath), nil
}
