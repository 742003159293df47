// Package blog implements the blog post use-cases on top of a pkg.PostStore.
// Errors leave this package as gRPC status errors so every transport maps them
// the same way.
package blog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/solorad/blog-api/pkg"
	"github.com/solorad/blog-api/pkg/log"
	"github.com/solorad/blog-api/pkg/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Service is the blog post service
type Service struct {
	store pkg.PostStore
	now   func() time.Time
}

// NewBlogService builds the service around store
func NewBlogService(store pkg.PostStore) *Service {
	return &Service{
		store: store,
		now:   time.Now,
	}
}

// ListPosts returns every stored post
func (s *Service) ListPosts(ctx context.Context) ([]*models.BlogPost, error) {
	posts, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, Status("list posts", err)
	}
	return posts, nil
}

// GetPost returns the post with the given id
func (s *Service) GetPost(ctx context.Context, id string) (*models.BlogPost, error) {
	post, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, Status("get post "+id, err)
	}
	return post, nil
}

// CreatePost persists a validated new post
func (s *Service) CreatePost(ctx context.Context, req *models.NewPost) (*models.BlogPost, error) {
	post := req.Post()
	post.Created = s.now().UTC().Truncate(time.Millisecond)
	post, err := s.store.InsertOne(ctx, post)
	if err != nil {
		return nil, Status("create post", err)
	}
	log.Infof("Created post %s", post.ID.Hex())
	return post, nil
}

// UpdatePost applies update to the post id and returns the stored result
func (s *Service) UpdatePost(ctx context.Context, id string, update *models.PostUpdate) (*models.BlogPost, error) {
	if update.ID != "" && update.ID != id {
		msg := fmt.Sprintf("request path id (%s) and request body id (%s) must match", id, update.ID)
		return nil, Status("update post", &models.ValidationError{Field: "id", Reason: msg})
	}
	if err := s.store.UpdateByID(ctx, id, update); err != nil {
		return nil, Status("update post "+id, err)
	}
	post, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, Status("reload post "+id, err)
	}
	log.Infof("Updated post %s", id)
	return post, nil
}

// DeletePost removes the post id
func (s *Service) DeletePost(ctx context.Context, id string) error {
	if err := s.store.DeleteByID(ctx, id); err != nil {
		return Status("delete post "+id, err)
	}
	log.Infof("Deleted post %s", id)
	return nil
}

// Status converts err to a gRPC status error. Errors outside the validation and
// not-found taxonomy are logged and reported as Internal.
func Status(op string, err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		return status.Error(codes.InvalidArgument, verr.Error())
	case errors.Is(err, pkg.ErrPostNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		log.Errorf("%s: %v", op, err)
		return status.Error(codes.Internal, fmt.Sprintf("%s: %v", op, err))
	}
}
