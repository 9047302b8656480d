package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/medconsult-app/medconsult-api/internal/models"
	appErrors "github.com/medconsult-app/medconsult-api/pkg/errors"
	"github.com/medconsult-app/medconsult-api/pkg/payment"
)

type paymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	FindBySessionID(ctx context.Context, sessionID string) (*models.Payment, error)
	ListByUser(ctx context.Context, userID string) ([]models.Payment, error)
	UpdateStatus(ctx context.Context, id string, status models.PaymentStatus) error
	SetSessionID(ctx context.Context, id, sessionID string) error
}

type paymentAppointmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Appointment, error)
	LinkPayment(ctx context.Context, ids []string, paymentID string) error
}

// PaymentConfig carries the consultation-fee settings.
type PaymentConfig struct {
	AmountCents int64
	Currency    string
	SuccessURL  string
	CancelURL   string
}

// CheckoutRequest opens a checkout session covering a set of booked slots.
type CheckoutRequest struct {
	AppointmentIDs []string `json:"appointment_ids" validate:"required,min=1,dive,required"`
	Description    string   `json:"description"`
}

// CheckoutResponse returns the redirect target for the hosted checkout page.
type CheckoutResponse struct {
	PaymentID   string `json:"payment_id"`
	CheckoutURL string `json:"checkout_url"`
}

// PaymentService drives the consultation-fee checkout flow against the
// external provider and links paid checkouts back to the booked slots.
type PaymentService struct {
	payments  paymentRepository
	appts     paymentAppointmentRepository
	provider  payment.Provider
	audits    auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	config    PaymentConfig
}

// NewPaymentService constructs a PaymentService.
func NewPaymentService(
	payments paymentRepository,
	appts paymentAppointmentRepository,
	provider payment.Provider,
	audits auditRecorder,
	validate *validator.Validate,
	logger *zap.Logger,
	config PaymentConfig,
) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Currency == "" {
		config.Currency = "usd"
	}
	return &PaymentService{
		payments:  payments,
		appts:     appts,
		provider:  provider,
		audits:    audits,
		validator: validate,
		logger:    logger,
		config:    config,
	}
}

// Checkout opens a provider checkout session for the patient's booked slots.
// The payment record is written before the provider call so a provider
// failure leaves a `failed` payment behind rather than nothing.
func (s *PaymentService) Checkout(ctx context.Context, userID, email string, req CheckoutRequest) (*CheckoutResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid checkout payload")
	}
	if s.provider == nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "payments are not enabled")
	}

	for _, id := range req.AppointmentIDs {
		appt, err := s.appts.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment")
		}
		if appt.PatientID != userID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "appointment does not belong to you")
		}
		if appt.PaymentID != nil {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "appointment already has a payment")
		}
	}

	description := req.Description
	if description == "" {
		description = "Consultation fee"
	}
	p := &models.Payment{
		UserID:      userID,
		AmountCents: s.config.AmountCents,
		Currency:    s.config.Currency,
		Status:      models.PaymentCreated,
		Description: &description,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}

	session, err := s.provider.CreateSession(ctx, payment.CreateSessionParams{
		AmountCents:   s.config.AmountCents,
		Currency:      s.config.Currency,
		Description:   description,
		CustomerEmail: email,
		SuccessURL:    s.config.SuccessURL,
		CancelURL:     s.config.CancelURL,
	})
	if err != nil {
		s.logger.Error("checkout session creation failed", zap.String("payment_id", p.ID), zap.Error(err))
		if updErr := s.payments.UpdateStatus(ctx, p.ID, models.PaymentFailed); updErr != nil {
			s.logger.Warn("failed to mark payment failed", zap.String("payment_id", p.ID), zap.Error(updErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPaymentProvider.Code, appErrors.ErrPaymentProvider.Status, "payment provider request failed")
	}

	if err := s.payments.SetSessionID(ctx, p.ID, session.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store session id")
	}
	if err := s.payments.UpdateStatus(ctx, p.ID, models.PaymentPending); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update payment status")
	}
	if err := s.appts.LinkPayment(ctx, req.AppointmentIDs, p.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to link payment to appointments")
	}

	if s.audits != nil {
		if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &userID,
			Action:     models.AuditActionPaymentCheckout,
			Resource:   "payments",
			ResourceID: &p.ID,
		}); err != nil {
			s.logger.Warn("failed to record checkout audit log", zap.Error(err))
		}
	}

	return &CheckoutResponse{PaymentID: p.ID, CheckoutURL: session.URL}, nil
}

// Confirm re-reads the provider session and promotes the payment to paid when
// the provider reports the checkout completed.
func (s *PaymentService) Confirm(ctx context.Context, userID, sessionID string) (*models.Payment, error) {
	if s.provider == nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "payments are not enabled")
	}

	p, err := s.payments.FindBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if p.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "payment does not belong to you")
	}
	if p.Status == models.PaymentPaid {
		return p, nil
	}

	session, err := s.provider.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPaymentProvider.Code, appErrors.ErrPaymentProvider.Status, "payment provider request failed")
	}
	if session.PaymentStatus != "paid" {
		return p, nil
	}

	if err := s.payments.UpdateStatus(ctx, p.ID, models.PaymentPaid); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update payment status")
	}
	p.Status = models.PaymentPaid
	return p, nil
}

// ListMine returns the user's payment history.
func (s *PaymentService) ListMine(ctx context.Context, userID string) ([]models.Payment, error) {
	payments, err := s.payments.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, nil
}
