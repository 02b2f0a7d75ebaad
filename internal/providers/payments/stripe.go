package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"github.com/yoockh/erasreview/internal/models"
)

const (
	metaUserID = "user_id"
	metaTier   = "package_tier"
)

type Stripe struct {
	api           *client.API
	webhookSecret string
}

func NewStripe(secretKey, webhookSecret string) *Stripe {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &Stripe{api: sc, webhookSecret: webhookSecret}
}

func (s *Stripe) CreateCheckoutSession(ctx context.Context, in CheckoutInput) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(in.SuccessURL),
		CancelURL:         stripe.String(in.CancelURL),
		ClientReferenceID: stripe.String(in.UserID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(in.Currency),
				UnitAmount: stripe.Int64(in.AmountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(in.ProductName),
				},
			},
		}},
	}
	if in.Email != "" {
		params.CustomerEmail = stripe.String(in.Email)
	}
	params.Context = ctx
	params.AddMetadata(metaUserID, in.UserID)
	params.AddMetadata(metaTier, string(in.Tier))

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, err
	}
	return toCheckoutSession(sess), nil
}

func (s *Stripe) GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, err
	}
	return toCheckoutSession(sess), nil
}

func (s *Stripe) ParseWebhook(payload []byte, signatureHeader string) (*Event, error) {
	if s.webhookSecret == "" {
		return nil, errors.New("webhook secret is not configured")
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signatureHeader, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &Event{ID: ev.ID, Type: string(ev.Type)}
	if strings.HasPrefix(out.Type, "checkout.session.") && ev.Data != nil {
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		out.Session = toCheckoutSession(&sess)
	}
	return out, nil
}

func toCheckoutSession(sess *stripe.CheckoutSession) *CheckoutSession {
	out := &CheckoutSession{
		ID:          sess.ID,
		URL:         sess.URL,
		UserID:      sess.Metadata[metaUserID],
		Tier:        models.PackageTier(sess.Metadata[metaTier]),
		Paid:        sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		AmountCents: sess.AmountTotal,
		Currency:    string(sess.Currency),
	}
	if out.UserID == "" {
		out.UserID = sess.ClientReferenceID
	}
	if sess.PaymentIntent != nil {
		out.PaymentIntentID = sess.PaymentIntent.ID
	}
	return out
}
