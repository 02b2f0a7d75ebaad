package postgres

import (
	"context"

	"github.com/yoockh/erasreview/internal/models"
	"gorm.io/gorm"
)

// Store groups the repositories that must share a transaction.
type Store interface {
	Users() UserRepository
	Applications() ApplicationRepository
	Reviews() ReviewRepository
	Payments() PaymentRepository
	Documents() DocumentRepository

	// WithinTx runs fn in one database transaction; returning an error rolls back.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Users() UserRepository               { return NewUserRepo(s.db) }
func (s *gormStore) Applications() ApplicationRepository { return NewApplicationRepo(s.db) }
func (s *gormStore) Reviews() ReviewRepository           { return NewReviewRepo(s.db) }
func (s *gormStore) Payments() PaymentRepository         { return NewPaymentRepo(s.db) }
func (s *gormStore) Documents() DocumentRepository       { return NewDocumentRepo(s.db) }

func (s *gormStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func pendingStatuses() []string {
	out := make([]string, 0, len(models.PendingStatuses))
	for _, s := range models.PendingStatuses {
		out = append(out, string(s))
	}
	return out
}
