package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/medconsult-app/medconsult-api/internal/models"
	appErrors "github.com/medconsult-app/medconsult-api/pkg/errors"
	"github.com/medconsult-app/medconsult-api/pkg/payment"
)

type fakePaymentRepo struct {
	payments    map[string]*models.Payment
	bySession   map[string]*models.Payment
	statusByID  map[string]models.PaymentStatus
	sessionByID map[string]string
	nextID      int
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{
		payments:    map[string]*models.Payment{},
		bySession:   map[string]*models.Payment{},
		statusByID:  map[string]models.PaymentStatus{},
		sessionByID: map[string]string{},
	}
}

func (f *fakePaymentRepo) Create(_ context.Context, p *models.Payment) error {
	f.nextID++
	p.ID = "pay-" + string(rune('0'+f.nextID))
	f.payments[p.ID] = p
	return nil
}

func (f *fakePaymentRepo) FindByID(_ context.Context, id string) (*models.Payment, error) {
	if p, ok := f.payments[id]; ok {
		return p, nil
	}
	return nil, errors.New("not found")
}

func (f *fakePaymentRepo) FindBySessionID(_ context.Context, sessionID string) (*models.Payment, error) {
	if p, ok := f.bySession[sessionID]; ok {
		return p, nil
	}
	return nil, errors.New("not found")
}

func (f *fakePaymentRepo) ListByUser(_ context.Context, _ string) ([]models.Payment, error) {
	var out []models.Payment
	for _, p := range f.payments {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakePaymentRepo) UpdateStatus(_ context.Context, id string, status models.PaymentStatus) error {
	f.statusByID[id] = status
	return nil
}

func (f *fakePaymentRepo) SetSessionID(_ context.Context, id, sessionID string) error {
	f.sessionByID[id] = sessionID
	return nil
}

type fakePaymentAppts struct {
	appts  map[string]*models.Appointment
	linked map[string]string
}

func (f *fakePaymentAppts) FindByID(_ context.Context, id string) (*models.Appointment, error) {
	if a, ok := f.appts[id]; ok {
		return a, nil
	}
	return nil, errors.New("not found")
}

func (f *fakePaymentAppts) LinkPayment(_ context.Context, ids []string, paymentID string) error {
	if f.linked == nil {
		f.linked = map[string]string{}
	}
	for _, id := range ids {
		f.linked[id] = paymentID
	}
	return nil
}

type fakeProvider struct {
	createErr   error
	session     payment.CheckoutSession
	retrieved   payment.CheckoutSession
	retrieveErr error
}

func (f *fakeProvider) CreateSession(_ context.Context, _ payment.CreateSessionParams) (*payment.CheckoutSession, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	s := f.session
	return &s, nil
}

func (f *fakeProvider) RetrieveSession(_ context.Context, _ string) (*payment.CheckoutSession, error) {
	if f.retrieveErr != nil {
		return nil, f.retrieveErr
	}
	s := f.retrieved
	return &s, nil
}

func newPaymentService(payments *fakePaymentRepo, appts *fakePaymentAppts, provider payment.Provider) *PaymentService {
	return NewPaymentService(payments, appts, provider, &fakeAudits{}, nil, zap.NewNop(), PaymentConfig{
		AmountCents: 5000,
		Currency:    "usd",
		SuccessURL:  "https://app.example.com/pay/success",
		CancelURL:   "https://app.example.com/pay/cancel",
	})
}

func TestCheckoutOpensSessionAndLinksSlots(t *testing.T) {
	payments := newFakePaymentRepo()
	appts := &fakePaymentAppts{appts: map[string]*models.Appointment{
		"a1": {ID: "a1", PatientID: "pat-1"},
		"a2": {ID: "a2", PatientID: "pat-1"},
	}}
	provider := &fakeProvider{session: payment.CheckoutSession{ID: "sess-1", URL: "https://pay.example.com/sess-1"}}
	svc := newPaymentService(payments, appts, provider)

	resp, err := svc.Checkout(context.Background(), "pat-1", "pat@example.com", CheckoutRequest{
		AppointmentIDs: []string{"a1", "a2"},
	})

	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/sess-1", resp.CheckoutURL)
	assert.Equal(t, "sess-1", payments.sessionByID[resp.PaymentID])
	assert.Equal(t, models.PaymentPending, payments.statusByID[resp.PaymentID])
	assert.Equal(t, resp.PaymentID, appts.linked["a1"])
	assert.Equal(t, resp.PaymentID, appts.linked["a2"])
}

func TestCheckoutProviderFailureMarksPaymentFailed(t *testing.T) {
	payments := newFakePaymentRepo()
	appts := &fakePaymentAppts{appts: map[string]*models.Appointment{
		"a1": {ID: "a1", PatientID: "pat-1"},
	}}
	provider := &fakeProvider{createErr: errors.New("upstream 502")}
	svc := newPaymentService(payments, appts, provider)

	_, err := svc.Checkout(context.Background(), "pat-1", "pat@example.com", CheckoutRequest{
		AppointmentIDs: []string{"a1"},
	})

	require.Error(t, err)
	assertAppCode(t, err, appErrors.ErrPaymentProvider)
	require.Len(t, payments.payments, 1)
	for id := range payments.payments {
		assert.Equal(t, models.PaymentFailed, payments.statusByID[id])
	}
	assert.Empty(t, appts.linked)
}

func TestCheckoutRejectsForeignAppointment(t *testing.T) {
	payments := newFakePaymentRepo()
	appts := &fakePaymentAppts{appts: map[string]*models.Appointment{
		"a1": {ID: "a1", PatientID: "someone-else"},
	}}
	svc := newPaymentService(payments, appts, &fakeProvider{})

	_, err := svc.Checkout(context.Background(), "pat-1", "pat@example.com", CheckoutRequest{
		AppointmentIDs: []string{"a1"},
	})

	require.Error(t, err)
	assertAppCode(t, err, appErrors.ErrForbidden)
	assert.Empty(t, payments.payments)
}

func TestCheckoutRejectsAlreadyPaidAppointment(t *testing.T) {
	pay := "pay-old"
	payments := newFakePaymentRepo()
	appts := &fakePaymentAppts{appts: map[string]*models.Appointment{
		"a1": {ID: "a1", PatientID: "pat-1", PaymentID: &pay},
	}}
	svc := newPaymentService(payments, appts, &fakeProvider{})

	_, err := svc.Checkout(context.Background(), "pat-1", "pat@example.com", CheckoutRequest{
		AppointmentIDs: []string{"a1"},
	})

	require.Error(t, err)
	assertAppCode(t, err, appErrors.ErrInvalidState)
}

func TestCheckoutWithoutProviderIsDisabled(t *testing.T) {
	svc := newPaymentService(newFakePaymentRepo(), &fakePaymentAppts{}, nil)

	_, err := svc.Checkout(context.Background(), "pat-1", "pat@example.com", CheckoutRequest{
		AppointmentIDs: []string{"a1"},
	})

	require.Error(t, err)
	assertAppCode(t, err, appErrors.ErrInvalidState)
}

func TestConfirmPromotesPaidSession(t *testing.T) {
	payments := newFakePaymentRepo()
	p := &models.Payment{ID: "pay-1", UserID: "pat-1", Status: models.PaymentPending}
	payments.payments["pay-1"] = p
	payments.bySession["sess-1"] = p
	provider := &fakeProvider{retrieved: payment.CheckoutSession{ID: "sess-1", PaymentStatus: "paid"}}
	svc := newPaymentService(payments, &fakePaymentAppts{}, provider)

	got, err := svc.Confirm(context.Background(), "pat-1", "sess-1")

	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, got.Status)
	assert.Equal(t, models.PaymentPaid, payments.statusByID["pay-1"])
}

func TestConfirmLeavesUnpaidSessionPending(t *testing.T) {
	payments := newFakePaymentRepo()
	p := &models.Payment{ID: "pay-1", UserID: "pat-1", Status: models.PaymentPending}
	payments.payments["pay-1"] = p
	payments.bySession["sess-1"] = p
	provider := &fakeProvider{retrieved: payment.CheckoutSession{ID: "sess-1", PaymentStatus: "unpaid"}}
	svc := newPaymentService(payments, &fakePaymentAppts{}, provider)

	got, err := svc.Confirm(context.Background(), "pat-1", "sess-1")

	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, got.Status)
	assert.Empty(t, payments.statusByID)
}
