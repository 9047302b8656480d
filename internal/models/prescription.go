package models

import "time"

// PrescriptionStatus is the lifecycle of an issued prescription.
type PrescriptionStatus string

const (
	PrescriptionActive    PrescriptionStatus = "active"
	PrescriptionCompleted PrescriptionStatus = "completed"
)

// Prescription is issued by a doctor to a patient.
type Prescription struct {
	ID        string             `db:"id" json:"id"`
	PatientID string             `db:"patient_id" json:"patient_id"`
	DoctorID  string             `db:"doctor_id" json:"doctor_id"`
	Title     string             `db:"title" json:"title"`
	Notes     string             `db:"notes" json:"notes"`
	FilePath  *string            `db:"file_path" json:"file_path,omitempty"`
	Status    PrescriptionStatus `db:"status" json:"status"`
	CreatedAt time.Time          `db:"created_at" json:"created_at"`
}

// DocumentType classifies uploaded documents.
type DocumentType string

const (
	DocumentLabReport    DocumentType = "lab_report"
	DocumentIDProof      DocumentType = "id_proof"
	DocumentScan         DocumentType = "scan"
	DocumentPrescription DocumentType = "prescription"
	DocumentOther        DocumentType = "other"
)

// ValidDocumentType reports whether t is a known document type.
func ValidDocumentType(t DocumentType) bool {
	switch t {
	case DocumentLabReport, DocumentIDProof, DocumentScan, DocumentPrescription, DocumentOther:
		return true
	}
	return false
}

// Document is a file owned by a user, uploaded by the user themselves or by
// their doctor.
type Document struct {
	ID           string       `db:"id" json:"id"`
	OwnerUserID  string       `db:"owner_user_id" json:"owner_user_id"`
	UploadedByID string       `db:"uploaded_by_id" json:"uploaded_by_id"`
	UploaderRole UserRole     `db:"uploader_role" json:"uploader_role"`
	FileName     string       `db:"file_name" json:"file_name"`
	FilePath     string       `db:"file_path" json:"-"`
	DocumentType DocumentType `db:"document_type" json:"document_type"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}
