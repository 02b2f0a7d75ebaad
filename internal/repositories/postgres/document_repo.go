package postgres

import (
	"context"

	"github.com/yoockh/erasreview/internal/models"
	"github.com/yoockh/erasreview/internal/utils"
	"gorm.io/gorm"
)

type DocumentRepository interface {
	Insert(ctx context.Context, d *models.Document) error
	ListByApplication(ctx context.Context, appID string) ([]models.Document, error)
	Get(ctx context.Context, appID, docID string) (*models.Document, error)
	Delete(ctx context.Context, appID, docID string) error
}

type documentRepo struct {
	db *gorm.DB
}

func NewDocumentRepo(db *gorm.DB) DocumentRepository {
	return &documentRepo{db: db}
}

func (r *documentRepo) Insert(ctx context.Context, d *models.Document) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *documentRepo) ListByApplication(ctx context.Context, appID string) ([]models.Document, error) {
	var rows []models.Document
	err := r.db.WithContext(ctx).
		Where("application_id = ?", appID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *documentRepo) Get(ctx context.Context, appID, docID string) (*models.Document, error) {
	var row models.Document
	err := r.db.WithContext(ctx).
		Where("id = ? AND application_id = ?", docID, appID).
		Take(&row).Error
	if isNotFound(err) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *documentRepo) Delete(ctx context.Context, appID, docID string) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND application_id = ?", docID, appID).
		Delete(&models.Document{})
	if isNotFound(res.Error) {
		return utils.ErrNotFound
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}
