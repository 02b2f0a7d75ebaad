package postgres

import (
	"context"
	"time"

	"github.com/yoockh/erasreview/internal/models"
	"github.com/yoockh/erasreview/internal/utils"
	"gorm.io/gorm"
)

type ReviewRepository interface {
	GetByAppAndReviewer(ctx context.Context, appID, reviewerID string) (*models.Review, error)
	Create(ctx context.Context, rv *models.Review) error
	Save(ctx context.Context, rv *models.Review) error
	// LatestForApplication returns the most recently updated review, or ErrNotFound.
	LatestForApplication(ctx context.Context, appID string) (*models.Review, error)
	ListForApplication(ctx context.Context, appID string) ([]models.Review, error)
}

type reviewRepo struct {
	db *gorm.DB
}

func NewReviewRepo(db *gorm.DB) ReviewRepository {
	return &reviewRepo{db: db}
}

func (r *reviewRepo) GetByAppAndReviewer(ctx context.Context, appID, reviewerID string) (*models.Review, error) {
	var rv models.Review
	err := r.db.WithContext(ctx).
		Where("application_id = ? AND reviewer_id = ?", appID, reviewerID).
		Take(&rv).Error
	if isNotFound(err) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rv, nil
}

func (r *reviewRepo) Create(ctx context.Context, rv *models.Review) error {
	err := r.db.WithContext(ctx).Create(rv).Error
	if isUniqueViolation(err) {
		return utils.ErrConflict
	}
	return err
}

func (r *reviewRepo) Save(ctx context.Context, rv *models.Review) error {
	rv.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Save(rv).Error
}

func (r *reviewRepo) LatestForApplication(ctx context.Context, appID string) (*models.Review, error) {
	var rv models.Review
	err := r.db.WithContext(ctx).
		Where("application_id = ?", appID).
		Order("updated_at DESC").
		Take(&rv).Error
	if isNotFound(err) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rv, nil
}

func (r *reviewRepo) ListForApplication(ctx context.Context, appID string) ([]models.Review, error) {
	var out []models.Review
	err := r.db.WithContext(ctx).
		Where("application_id = ?", appID).
		Order("updated_at DESC").
		Find(&out).Error
	return out, err
}
