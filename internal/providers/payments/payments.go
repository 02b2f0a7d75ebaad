package payments

import (
	"context"
	"errors"

	"github.com/yoockh/erasreview/internal/models"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

// Webhook event types handled by the payment service.
const (
	EventCheckoutCompleted          = "checkout.session.completed"
	EventCheckoutAsyncSucceeded     = "checkout.session.async_payment_succeeded"
	EventCheckoutAsyncPaymentFailed = "checkout.session.async_payment_failed"
	EventCheckoutExpired            = "checkout.session.expired"
)

type CheckoutInput struct {
	UserID      string
	Email       string
	Tier        models.PackageTier
	ProductName string
	AmountCents int64
	Currency    string
	SuccessURL  string
	CancelURL   string
}

// CheckoutSession is the processor-neutral view of a hosted checkout.
type CheckoutSession struct {
	ID              string
	URL             string
	UserID          string
	Tier            models.PackageTier
	Paid            bool
	PaymentIntentID string
	AmountCents     int64
	Currency        string
}

func (s *CheckoutSession) Confirmation() models.PaymentConfirmation {
	return models.PaymentConfirmation{
		ExternalID:      s.ID,
		PaymentIntentID: s.PaymentIntentID,
		UserID:          s.UserID,
		PackageTier:     s.Tier,
		AmountCents:     s.AmountCents,
		Currency:        s.Currency,
	}
}

type Event struct {
	ID      string
	Type    string
	Session *CheckoutSession // nil for non-checkout events
}

type Processor interface {
	CreateCheckoutSession(ctx context.Context, in CheckoutInput) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error)
	// ParseWebhook verifies the signature header and decodes the event.
	ParseWebhook(payload []byte, signatureHeader string) (*Event, error)
}
