package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/yoockh/erasreview/internal/models"
	"github.com/yoockh/erasreview/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type BlogRepository interface {
	Insert(ctx context.Context, p *models.BlogPost) error
	GetBySlug(ctx context.Context, slug string) (*models.BlogPost, error)
	ExistsBySlug(ctx context.Context, slug string) (bool, error)
	ListPublished(ctx context.Context, limit, skip int64) ([]models.BlogPost, error)
	ListAll(ctx context.Context, limit, skip int64) ([]models.BlogPost, error)
	Update(ctx context.Context, slug string, p *models.BlogPost) error
	Publish(ctx context.Context, slug string, at time.Time) error
	Delete(ctx context.Context, slug string) error
}

type blogRepo struct {
	col *mongo.Collection
}

func NewBlogRepo(db *mongo.Database) BlogRepository {
	return &blogRepo{col: db.Collection("blog_posts")}
}

func (r *blogRepo) Insert(ctx context.Context, p *models.BlogPost) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := r.col.InsertOne(ctx, p)
	if mongo.IsDuplicateKeyError(err) {
		return utils.ErrConflict
	}
	return err
}

func (r *blogRepo) GetBySlug(ctx context.Context, slug string) (*models.BlogPost, error) {
	var p models.BlogPost
	err := r.col.FindOne(ctx, bson.M{"slug": slug}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *blogRepo) ExistsBySlug(ctx context.Context, slug string) (bool, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{"slug": slug}, options.Count().SetLimit(1))
	return n > 0, err
}

func (r *blogRepo) ListPublished(ctx context.Context, limit, skip int64) ([]models.BlogPost, error) {
	return r.find(ctx, bson.M{"status": models.BlogStatusPublished}, "published_at", limit, skip)
}

func (r *blogRepo) ListAll(ctx context.Context, limit, skip int64) ([]models.BlogPost, error) {
	return r.find(ctx, bson.M{}, "created_at", limit, skip)
}

func (r *blogRepo) find(ctx context.Context, filter bson.M, sortKey string, limit, skip int64) ([]models.BlogPost, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 1000 {
		limit = 1000
	}

	cur, err := r.col.Find(ctx, filter,
		options.Find().
			SetSort(bson.D{{Key: sortKey, Value: -1}}).
			SetLimit(limit).
			SetSkip(skip),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.BlogPost{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *blogRepo) Update(ctx context.Context, slug string, p *models.BlogPost) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"slug": slug},
		bson.M{"$set": bson.M{
			"title":      p.Title,
			"excerpt":    p.Excerpt,
			"content":    p.Content,
			"tags":       p.Tags,
			"updated_at": time.Now().UTC(),
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *blogRepo) Publish(ctx context.Context, slug string, at time.Time) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"slug": slug},
		bson.M{"$set": bson.M{
			"status":       models.BlogStatusPublished,
			"published_at": at,
			"updated_at":   at,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *blogRepo) Delete(ctx context.Context, slug string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"slug": slug})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}
