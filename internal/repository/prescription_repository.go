package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medconsult-app/medconsult-api/internal/models"
)

// PrescriptionRepository persists prescriptions and uploaded documents.
type PrescriptionRepository struct {
	db *sqlx.DB
}

// NewPrescriptionRepository creates a new prescription repository.
func NewPrescriptionRepository(db *sqlx.DB) *PrescriptionRepository {
	return &PrescriptionRepository{db: db}
}

const prescriptionColumns = `id, patient_id, doctor_id, title, notes, file_path, status, created_at`

// Create stores a new prescription.
func (r *PrescriptionRepository) Create(ctx context.Context, p *models.Prescription) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO prescriptions (id, patient_id, doctor_id, title, notes, file_path, status, created_at)
		VALUES (:id, :patient_id, :doctor_id, :title, :notes, :file_path, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("create prescription: %w", err)
	}
	return nil
}

// ListByPatient returns a patient's prescriptions, newest first.
func (r *PrescriptionRepository) ListByPatient(ctx context.Context, patientID string) ([]models.Prescription, error) {
	query := `SELECT ` + prescriptionColumns + ` FROM prescriptions WHERE patient_id = $1 ORDER BY created_at DESC`
	var list []models.Prescription
	if err := r.db.SelectContext(ctx, &list, query, patientID); err != nil {
		return nil, fmt.Errorf("list prescriptions by patient: %w", err)
	}
	return list, nil
}

// ListByDoctor returns the prescriptions a doctor issued, newest first.
func (r *PrescriptionRepository) ListByDoctor(ctx context.Context, doctorID string) ([]models.Prescription, error) {
	query := `SELECT ` + prescriptionColumns + ` FROM prescriptions WHERE doctor_id = $1 ORDER BY created_at DESC`
	var list []models.Prescription
	if err := r.db.SelectContext(ctx, &list, query, doctorID); err != nil {
		return nil, fmt.Errorf("list prescriptions by doctor: %w", err)
	}
	return list, nil
}

// ListAll returns every prescription, newest first. Admin use only.
func (r *PrescriptionRepository) ListAll(ctx context.Context) ([]models.Prescription, error) {
	query := `SELECT ` + prescriptionColumns + ` FROM prescriptions ORDER BY created_at DESC`
	var list []models.Prescription
	if err := r.db.SelectContext(ctx, &list, query); err != nil {
		return nil, fmt.Errorf("list all prescriptions: %w", err)
	}
	return list, nil
}

// UpdateStatus flips a prescription between active and completed.
func (r *PrescriptionRepository) UpdateStatus(ctx context.Context, id string, status models.PrescriptionStatus) error {
	const query = `UPDATE prescriptions SET status = $2 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("update prescription status: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

const documentColumns = `id, owner_user_id, uploaded_by_id, uploader_role, file_name, file_path, document_type, created_at`

// CreateDocument stores a new document record.
func (r *PrescriptionRepository) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO documents (id, owner_user_id, uploaded_by_id, uploader_role, file_name, file_path, document_type, created_at)
		VALUES (:id, :owner_user_id, :uploaded_by_id, :uploader_role, :file_name, :file_path, :document_type, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// FindDocumentByID loads a document by id.
func (r *PrescriptionRepository) FindDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 LIMIT 1`
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find document by id: %w", err)
	}
	return &doc, nil
}

// ListDocumentsByOwner returns documents owned by a user, newest first.
func (r *PrescriptionRepository) ListDocumentsByOwner(ctx context.Context, ownerID string) ([]models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE owner_user_id = $1 ORDER BY created_at DESC`
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, ownerID); err != nil {
		return nil, fmt.Errorf("list documents by owner: %w", err)
	}
	return docs, nil
}
