package models

import "time"

// PaymentStatus tracks a checkout from creation to a terminal state.
type PaymentStatus string

const (
	PaymentCreated PaymentStatus = "created"
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// Payment records a consultation-fee checkout against the external provider.
type Payment struct {
	ID                string        `db:"id" json:"id"`
	UserID            string        `db:"user_id" json:"user_id"`
	AmountCents       int64         `db:"amount_cents" json:"amount_cents"`
	Currency          string        `db:"currency" json:"currency"`
	ProviderSessionID *string       `db:"provider_session_id" json:"provider_session_id,omitempty"`
	Status            PaymentStatus `db:"status" json:"status"`
	Description       *string       `db:"description" json:"description,omitempty"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updated_at"`
}

// IsPaid reports whether the payment reached the paid terminal state.
func (p *Payment) IsPaid() bool {
	return p != nil && p.Status == PaymentPaid
}
