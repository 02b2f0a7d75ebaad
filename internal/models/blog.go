package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	BlogStatusDraft     = "draft"
	BlogStatusPublished = "published"

	BlogSourceManual    = "manual"
	BlogSourceGenerated = "generated"
)

type BlogPost struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Slug    string             `bson:"slug" json:"slug"`
	Title   string             `bson:"title" json:"title"`
	Excerpt string             `bson:"excerpt,omitempty" json:"excerpt,omitempty"`
	Content string             `bson:"content" json:"content"` // markdown
	Tags    []string           `bson:"tags,omitempty" json:"tags,omitempty"`

	Status string `bson:"status" json:"status"` // draft|published
	Source string `bson:"source" json:"source"` // manual|generated
	Topic  string `bson:"topic,omitempty" json:"topic,omitempty"`

	PublishedAt *time.Time `bson:"published_at,omitempty" json:"published_at,omitempty"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
}
