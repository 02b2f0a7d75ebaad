package postgres

import (
	"context"
	"time"

	"github.com/yoockh/erasreview/internal/models"
	"github.com/yoockh/erasreview/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentRepository interface {
	Create(ctx context.Context, p *models.Payment) error
	GetByExternalID(ctx context.Context, externalID string) (*models.Payment, error)
	// LockByExternalID holds a row lock on the payment until the transaction ends.
	LockByExternalID(ctx context.Context, externalID string) (*models.Payment, error)
	Save(ctx context.Context, p *models.Payment) error
	// FindUnlinkedSucceeded locks the user's oldest succeeded payment not yet tied to an application.
	FindUnlinkedSucceeded(ctx context.Context, userID string) (*models.Payment, error)
	ListByUser(ctx context.Context, userID string) ([]models.Payment, error)
	// RecordEvent reports false when the event was already processed.
	RecordEvent(ctx context.Context, eventID, eventType string) (bool, error)
}

type paymentRepo struct {
	db *gorm.DB
}

func NewPaymentRepo(db *gorm.DB) PaymentRepository {
	return &paymentRepo{db: db}
}

func (r *paymentRepo) Create(ctx context.Context, p *models.Payment) error {
	err := r.db.WithContext(ctx).Create(p).Error
	if isUniqueViolation(err) {
		return utils.ErrConflict
	}
	return err
}

func (r *paymentRepo) GetByExternalID(ctx context.Context, externalID string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.WithContext(ctx).Where("external_id = ?", externalID).Take(&p).Error
	if isNotFound(err) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepo) LockByExternalID(ctx context.Context, externalID string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("external_id = ?", externalID).
		Take(&p).Error
	if isNotFound(err) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepo) Save(ctx context.Context, p *models.Payment) error {
	p.UpdatedAt = time.Now().UTC()
	err := r.db.WithContext(ctx).Save(p).Error
	if isUniqueViolation(err) {
		return utils.ErrConflict
	}
	return err
}

func (r *paymentRepo) FindUnlinkedSucceeded(ctx context.Context, userID string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND status = ? AND application_id IS NULL", userID, models.PaymentSucceeded).
		Order("created_at ASC").
		Take(&p).Error
	if isNotFound(err) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepo) ListByUser(ctx context.Context, userID string) ([]models.Payment, error) {
	var out []models.Payment
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

func (r *paymentRepo) RecordEvent(ctx context.Context, eventID, eventType string) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(&models.ProcessedEvent{EventID: eventID, Type: eventType, ProcessedAt: time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
