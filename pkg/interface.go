package pkg

import (
	"context"
	"errors"

	"github.com/solorad/blog-api/pkg/models"
)

// ErrPostNotFound is returned by PostStore lookups and writes on an unknown id
var ErrPostNotFound = errors.New("post not found")

// PostStore interface for work with the blog post collection
type PostStore interface {
	// InsertMany stores a batch of posts, assigning ids and creation times where missing.
	InsertMany(ctx context.Context, posts []*models.BlogPost) ([]*models.BlogPost, error)
	InsertOne(ctx context.Context, post *models.BlogPost) (*models.BlogPost, error)
	// FindAll returns every post ordered by creation time.
	FindAll(ctx context.Context) ([]*models.BlogPost, error)
	FindByID(ctx context.Context, id string) (*models.BlogPost, error)
	// FindOne returns an arbitrary post.
	FindOne(ctx context.Context) (*models.BlogPost, error)
	UpdateByID(ctx context.Context, id string, update *models.PostUpdate) error
	DeleteByID(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
	DropDatabase(ctx context.Context) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
