package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/erasreview/internal/metrics"
	"github.com/yoockh/erasreview/internal/models"
	"github.com/yoockh/erasreview/internal/notify"
	"github.com/yoockh/erasreview/internal/providers/payments"
	pgrepo "github.com/yoockh/erasreview/internal/repositories/postgres"
	"github.com/yoockh/erasreview/internal/utils"
)

type PaymentConfig struct {
	SuccessURL      string
	CancelURL       string
	Currency        string
	AutoCreateDraft bool
}

type CheckoutResult struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

type ConfirmResult struct {
	Payment          *models.Payment     `json:"payment"`
	Application      *models.Application `json:"application,omitempty"`
	AlreadyConfirmed bool                `json:"already_confirmed"`
}

type WebhookResult struct {
	EventID   string `json:"event_id"`
	Type      string `json:"type"`
	Duplicate bool   `json:"duplicate"`
	Action    string `json:"action"` // confirmed|failed|ignored
}

type VerifyResult struct {
	Paid    bool           `json:"paid"`
	Confirm *ConfirmResult `json:"confirmation,omitempty"`
}

type PaymentService interface {
	CreateCheckout(ctx context.Context, userID, email string, tier models.PackageTier) (*CheckoutResult, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error)
	VerifySession(ctx context.Context, userID, sessionID string) (*VerifyResult, error)
	// Confirm is idempotent on the external id.
	Confirm(ctx context.Context, c models.PaymentConfirmation) (*ConfirmResult, error)
	ListMine(ctx context.Context, userID string) ([]models.Payment, error)
	CreateTestPayment(ctx context.Context, userID string, tier models.PackageTier) (*ConfirmResult, error)
}

type paymentService struct {
	store     pgrepo.Store
	processor payments.Processor
	notifier  notify.Notifier
	cfg       PaymentConfig
	log       *logrus.Logger
	now       func() time.Time
}

func NewPaymentService(store pgrepo.Store, p payments.Processor, n notify.Notifier, cfg PaymentConfig, log *logrus.Logger) PaymentService {
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	return &paymentService{
		store:     store,
		processor: p,
		notifier:  n,
		cfg:       cfg,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *paymentService) CreateCheckout(ctx context.Context, userID, email string, tier models.PackageTier) (*CheckoutResult, error) {
	const op = "PaymentService.CreateCheckout"

	info, ok := tier.Info()
	if !ok {
		return nil, utils.E(utils.CodeInvalidArgument, op, "unknown package tier", nil)
	}
	if s.processor == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "payments are not configured", nil)
	}

	sess, err := s.processor.CreateCheckoutSession(ctx, payments.CheckoutInput{
		UserID:      userID,
		Email:       email,
		Tier:        tier,
		ProductName: info.Name,
		AmountCents: info.AmountCents,
		Currency:    s.cfg.Currency,
		SuccessURL:  s.cfg.SuccessURL,
		CancelURL:   s.cfg.CancelURL,
	})
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to create checkout session", err)
	}

	now := s.now()
	if err := s.store.Payments().Create(ctx, &models.Payment{
		ID:          uuid.NewString(),
		UserID:      userID,
		PackageTier: tier,
		AmountCents: info.AmountCents,
		Currency:    s.cfg.Currency,
		ExternalID:  sess.ID,
		Status:      models.PaymentPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to record payment", err)
	}

	return &CheckoutResult{SessionID: sess.ID, URL: sess.URL}, nil
}

func (s *paymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	const op = "PaymentService.HandleWebhook"

	if s.processor == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "payments are not configured", nil)
	}
	ev, err := s.processor.ParseWebhook(payload, signature)
	if err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid webhook", err)
	}

	res := &WebhookResult{EventID: ev.ID, Type: ev.Type, Action: "ignored"}
	var confirmed *ConfirmResult
	err = s.store.WithinTx(ctx, func(tx pgrepo.Store) error {
		first, err := tx.Payments().RecordEvent(ctx, ev.ID, ev.Type)
		if err != nil {
			return err
		}
		if !first {
			res.Duplicate = true
			return nil
		}
		if ev.Session == nil {
			return nil
		}

		switch ev.Type {
		case payments.EventCheckoutCompleted, payments.EventCheckoutAsyncSucceeded:
			if !ev.Session.Paid {
				// async methods settle later
				return nil
			}
			confirmed, err = s.confirmTx(ctx, tx, op, ev.Session.Confirmation())
			if err != nil {
				return err
			}
			res.Action = "confirmed"
		case payments.EventCheckoutAsyncPaymentFailed, payments.EventCheckoutExpired:
			if err := s.markFailed(ctx, tx, ev.Session.ID); err != nil {
				return err
			}
			res.Action = "failed"
		}
		return nil
	})
	if err != nil {
		return nil, passAppErr(op, "failed to process webhook", err)
	}

	if confirmed != nil {
		s.afterConfirm(ctx, confirmed)
	}
	s.log.WithFields(logrus.Fields{
		"event_id":  res.EventID,
		"type":      res.Type,
		"duplicate": res.Duplicate,
		"action":    res.Action,
	}).Info("payment webhook processed")
	return res, nil
}

func (s *paymentService) markFailed(ctx context.Context, tx pgrepo.Store, externalID string) error {
	p, err := tx.Payments().LockByExternalID(ctx, externalID)
	if errors.Is(err, utils.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if p.Status == models.PaymentSucceeded {
		return nil
	}
	p.Status = models.PaymentFailed
	return tx.Payments().Save(ctx, p)
}

func (s *paymentService) VerifySession(ctx context.Context, userID, sessionID string) (*VerifyResult, error) {
	const op = "PaymentService.VerifySession"

	if strings.TrimSpace(sessionID) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	if s.processor == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "payments are not configured", nil)
	}

	sess, err := s.processor.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to fetch checkout session", err)
	}
	if sess.UserID != userID {
		return nil, utils.E(utils.CodeNotFound, op, "checkout session not found", nil)
	}
	if !sess.Paid {
		return &VerifyResult{Paid: false}, nil
	}

	c, err := s.Confirm(ctx, sess.Confirmation())
	if err != nil {
		return nil, err
	}
	return &VerifyResult{Paid: true, Confirm: c}, nil
}

func (s *paymentService) Confirm(ctx context.Context, c models.PaymentConfirmation) (*ConfirmResult, error) {
	const op = "PaymentService.Confirm"

	var res *ConfirmResult
	err := s.store.WithinTx(ctx, func(tx pgrepo.Store) error {
		var err error
		res, err = s.confirmTx(ctx, tx, op, c)
		return err
	})
	if errors.Is(err, utils.ErrConflict) {
		// a concurrent confirmation of the same session won
		p, gerr := s.store.Payments().GetByExternalID(ctx, c.ExternalID)
		if gerr == nil && p.Status == models.PaymentSucceeded {
			return &ConfirmResult{Payment: p, AlreadyConfirmed: true}, nil
		}
	}
	if err != nil {
		return nil, passAppErr(op, "failed to confirm payment", err)
	}

	s.afterConfirm(ctx, res)
	return res, nil
}

func (s *paymentService) confirmTx(ctx context.Context, tx pgrepo.Store, op string, c models.PaymentConfirmation) (*ConfirmResult, error) {
	if c.ExternalID == "" || c.UserID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "confirmation needs external id and user id", nil)
	}
	info, ok := c.PackageTier.Info()
	if !ok {
		return nil, utils.E(utils.CodeInvalidArgument, op, "unknown package tier", nil)
	}
	if c.AmountCents == 0 {
		c.AmountCents = info.AmountCents
	}
	if c.Currency == "" {
		c.Currency = s.cfg.Currency
	}

	now := s.now()
	p, err := tx.Payments().LockByExternalID(ctx, c.ExternalID)
	switch {
	case err == nil:
		if p.Status == models.PaymentSucceeded {
			return &ConfirmResult{Payment: p, AlreadyConfirmed: true}, nil
		}
		p.Status = models.PaymentSucceeded
		p.PaymentIntentID = c.PaymentIntentID
		p.AmountCents = c.AmountCents
		p.Currency = c.Currency
		if err := tx.Payments().Save(ctx, p); err != nil {
			return nil, err
		}
	case errors.Is(err, utils.ErrNotFound):
		p = &models.Payment{
			ID:              uuid.NewString(),
			UserID:          c.UserID,
			PackageTier:     c.PackageTier,
			AmountCents:     c.AmountCents,
			Currency:        c.Currency,
			ExternalID:      c.ExternalID,
			PaymentIntentID: c.PaymentIntentID,
			Status:          models.PaymentSucceeded,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.Payments().Create(ctx, p); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	res := &ConfirmResult{Payment: p}
	if s.cfg.AutoCreateDraft && p.ApplicationID == nil {
		app, err := newDraft(ctx, tx, p, "", now)
		if err != nil {
			return nil, err
		}
		res.Application = app
	}
	return res, nil
}

func (s *paymentService) afterConfirm(ctx context.Context, res *ConfirmResult) {
	if res == nil || res.AlreadyConfirmed {
		return
	}
	metrics.PaymentsConfirmed.Inc()

	fields := map[string]string{
		"payment_id":   res.Payment.ID,
		"package_tier": string(res.Payment.PackageTier),
		"amount_cents": formatCents(res.Payment.AmountCents),
	}
	if res.Application != nil {
		fields["application_id"] = res.Application.ID
	}
	s.notifier.Notify(ctx, models.Notification{
		Kind:    models.NotifyPaymentSucceeded,
		UserID:  res.Payment.UserID,
		Subject: "Payment received",
		Body:    string(res.Payment.PackageTier) + " package purchased",
		Fields:  fields,
	})
}

func (s *paymentService) ListMine(ctx context.Context, userID string) ([]models.Payment, error) {
	const op = "PaymentService.ListMine"

	out, err := s.store.Payments().ListByUser(ctx, userID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list payments", err)
	}
	return out, nil
}

func (s *paymentService) CreateTestPayment(ctx context.Context, userID string, tier models.PackageTier) (*ConfirmResult, error) {
	const op = "PaymentService.CreateTestPayment"

	info, ok := tier.Info()
	if !ok {
		return nil, utils.E(utils.CodeInvalidArgument, op, "unknown package tier", nil)
	}
	return s.Confirm(ctx, models.PaymentConfirmation{
		ExternalID:  "test_" + uuid.NewString(),
		UserID:      userID,
		PackageTier: tier,
		AmountCents: info.AmountCents,
		Currency:    s.cfg.Currency,
	})
}
