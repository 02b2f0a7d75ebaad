package postgres

import (
	"context"
	"time"

	"github.com/yoockh/erasreview/internal/models"
	"github.com/yoockh/erasreview/internal/utils"
	"gorm.io/gorm"
)

type ApplicationFilter struct {
	Status models.ApplicationStatus
	UserID string
	Limit  int
	Offset int
}

type ApplicationRepository interface {
	Create(ctx context.Context, a *models.Application) error
	GetOwned(ctx context.Context, id, userID string) (*models.Application, error)
	GetDetailed(ctx context.Context, id string) (*models.Application, error)
	ListByUser(ctx context.Context, userID string) ([]models.Application, error)
	List(ctx context.Context, f ApplicationFilter) ([]models.Application, int64, error)
	// FindPendingByUser returns the user's IN_REVIEW/SUBMITTED application other than excludeID.
	FindPendingByUser(ctx context.Context, userID, excludeID string) (*models.Application, error)
	Save(ctx context.Context, a *models.Application) error
	// UpdateStatus moves the row only if it is still in from; ErrConflict otherwise.
	UpdateStatus(ctx context.Context, a *models.Application, from models.ApplicationStatus) error
	InsertStatusEvent(ctx context.Context, ev *models.StatusEvent) error
	Delete(ctx context.Context, id string) error

	CountExperiences(ctx context.Context, appID string) (int64, error)
	CountMostMeaningful(ctx context.Context, appID, excludeID string) (int64, error)
	ListExperiences(ctx context.Context, appID string) ([]models.Experience, error)
	GetExperience(ctx context.Context, appID, expID string) (*models.Experience, error)
	CreateExperience(ctx context.Context, e *models.Experience) error
	SaveExperience(ctx context.Context, e *models.Experience) error
	DeleteExperience(ctx context.Context, appID, expID string) error
}

type applicationRepo struct {
	db *gorm.DB
}

func NewApplicationRepo(db *gorm.DB) ApplicationRepository {
	return &applicationRepo{db: db}
}

func (r *applicationRepo) Create(ctx context.Context, a *models.Application) error {
	err := r.db.WithContext(ctx).Omit("Experiences", "Documents").Create(a).Error
	if isUniqueViolation(err) {
		return utils.ErrConflict
	}
	return err
}

func (r *applicationRepo) GetOwned(ctx context.Context, id, userID string) (*models.Application, error) {
	var a models.Application
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Take(&a).Error
	if isNotFound(err) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *applicationRepo) GetDetailed(ctx context.Context, id string) (*models.Application, error) {
	var a models.Application
	err := r.db.WithContext(ctx).
		Preload("Experiences", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, created_at ASC")
		}).
		Preload("Documents", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		Where("id = ?", id).
		Take(&a).Error
	if isNotFound(err) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *applicationRepo) ListByUser(ctx context.Context, userID string) ([]models.Application, error) {
	var out []models.Application
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

func (r *applicationRepo) List(ctx context.Context, f ApplicationFilter) ([]models.Application, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Application{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var out []models.Application
	err := q.Order("updated_at DESC").Limit(limit).Offset(f.Offset).Find(&out).Error
	return out, total, err
}

func (r *applicationRepo) FindPendingByUser(ctx context.Context, userID, excludeID string) (*models.Application, error) {
	q := r.db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID, pendingStatuses())
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}

	var a models.Application
	err := q.Order("created_at ASC").Take(&a).Error
	if isNotFound(err) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *applicationRepo) Save(ctx context.Context, a *models.Application) error {
	a.UpdatedAt = time.Now().UTC()
	err := r.db.WithContext(ctx).Omit("Experiences", "Documents").Save(a).Error
	if isUniqueViolation(err) {
		return utils.ErrConflict
	}
	return err
}

func (r *applicationRepo) UpdateStatus(ctx context.Context, a *models.Application, from models.ApplicationStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.Application{}).
		Where("id = ? AND status = ?", a.ID, from).
		Updates(map[string]any{
			"status":       a.Status,
			"submitted_at": a.SubmittedAt,
			"reviewed_at":  a.ReviewedAt,
			"completed_at": a.CompletedAt,
			"updated_at":   a.UpdatedAt,
		})
	if isUniqueViolation(res.Error) {
		return utils.ErrConflict
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrConflict
	}
	return nil
}

func (r *applicationRepo) InsertStatusEvent(ctx context.Context, ev *models.StatusEvent) error {
	return r.db.WithContext(ctx).Create(ev).Error
}

func (r *applicationRepo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Application{})
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

func (r *applicationRepo) CountExperiences(ctx context.Context, appID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.Experience{}).
		Where("application_id = ?", appID).
		Count(&n).Error
	return n, err
}

func (r *applicationRepo) CountMostMeaningful(ctx context.Context, appID, excludeID string) (int64, error) {
	q := r.db.WithContext(ctx).
		Model(&models.Experience{}).
		Where("application_id = ? AND most_meaningful = ?", appID, true)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

func (r *applicationRepo) ListExperiences(ctx context.Context, appID string) ([]models.Experience, error) {
	var out []models.Experience
	err := r.db.WithContext(ctx).
		Where("application_id = ?", appID).
		Order("position ASC, created_at ASC").
		Find(&out).Error
	return out, err
}

func (r *applicationRepo) GetExperience(ctx context.Context, appID, expID string) (*models.Experience, error) {
	var e models.Experience
	err := r.db.WithContext(ctx).
		Where("id = ? AND application_id = ?", expID, appID).
		Take(&e).Error
	if isNotFound(err) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *applicationRepo) CreateExperience(ctx context.Context, e *models.Experience) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *applicationRepo) SaveExperience(ctx context.Context, e *models.Experience) error {
	e.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Save(e).Error
}

func (r *applicationRepo) DeleteExperience(ctx context.Context, appID, expID string) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND application_id = ?", expID, appID).
		Delete(&models.Experience{})
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
