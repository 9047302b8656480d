package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/medconsult-app/medconsult-api/internal/models"
)

// PaymentRepository persists consultation-fee payments.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository creates a new payment repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, user_id, amount_cents, currency, provider_session_id, status, description, created_at, updated_at`

// Create stores a new payment record.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	payment.UpdatedAt = now
	const query = `INSERT INTO payments (id, user_id, amount_cents, currency, provider_session_id, status, description, created_at, updated_at)
		VALUES (:id, :user_id, :amount_cents, :currency, :provider_session_id, :status, :description, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// FindByID loads a payment by id.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 LIMIT 1`
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find payment by id: %w", err)
	}
	return &payment, nil
}

// FindBySessionID loads a payment by the provider session reference.
func (r *PaymentRepository) FindBySessionID(ctx context.Context, sessionID string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE provider_session_id = $1 LIMIT 1`
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, sessionID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find payment by session id: %w", err)
	}
	return &payment, nil
}

// ListByUser returns a user's payments, newest first.
func (r *PaymentRepository) ListByUser(ctx context.Context, userID string) ([]models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE user_id = $1 ORDER BY created_at DESC`
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, userID); err != nil {
		return nil, fmt.Errorf("list payments by user: %w", err)
	}
	return payments, nil
}

// UpdateStatus sets the payment status.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id string, status models.PaymentStatus) error {
	const query = `UPDATE payments SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	return nil
}

// SetSessionID records the provider session once the checkout is opened.
func (r *PaymentRepository) SetSessionID(ctx context.Context, id, sessionID string) error {
	const query = `UPDATE payments SET provider_session_id = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, sessionID, time.Now().UTC()); err != nil {
		return fmt.Errorf("set payment session id: %w", err)
	}
	return nil
}

// FindStatuses returns the status of each payment id present.
func (r *PaymentRepository) FindStatuses(ctx context.Context, ids []string) (map[string]models.PaymentStatus, error) {
	statuses := make(map[string]models.PaymentStatus, len(ids))
	if len(ids) == 0 {
		return statuses, nil
	}
	const query = `SELECT id, status FROM payments WHERE id = ANY($1)`
	rows, err := r.db.QueryxContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("find payment statuses: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var status models.PaymentStatus
		if err := rows.Scan(&id, &status); err != nil {
			return nil, fmt.Errorf("scan payment status: %w", err)
		}
		statuses[id] = status
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment statuses: %w", err)
	}
	return statuses, nil
}
