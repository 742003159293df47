package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/solorad/blog-api/pkg"
	"github.com/solorad/blog-api/pkg/log"
	"github.com/solorad/blog-api/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// prepare assigns the store-owned fields of a new post
func prepare(p *models.BlogPost, now time.Time) {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if p.Created.IsZero() {
		p.Created = now
	}
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// InsertMany writes posts in batches of bulkSize
func (m *MongoClient) InsertMany(ctx context.Context, posts []*models.BlogPost) ([]*models.BlogPost, error) {
	start := time.Now()
	defer func() {
		log.TimeTrack(start, "InsertMany to "+m.posts.Name())
	}()
	ts := now()
	for from := 0; from < len(posts); from += bulkSize {
		to := from + bulkSize
		if to > len(posts) {
			to = len(posts)
		}
		docs := make([]interface{}, 0, to-from)
		for _, p := range posts[from:to] {
			prepare(p, ts)
			docs = append(docs, p)
		}
		if err := m.insertBatch(ctx, docs); err != nil {
			return nil, err
		}
	}
	return posts, nil
}

func (m *MongoClient) insertBatch(ctx context.Context, docs []interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Minute)
	defer cancel()
	_, err := m.posts.InsertMany(ctx, docs)
	if err != nil {
		return fmt.Errorf("insert into %s: %w", m.posts.Name(), err)
	}
	return nil
}

// InsertOne stores a single post
func (m *MongoClient) InsertOne(ctx context.Context, post *models.BlogPost) (*models.BlogPost, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	prepare(post, now())
	if _, err := m.posts.InsertOne(ctx, post); err != nil {
		return nil, fmt.Errorf("insert into %s: %w", m.posts.Name(), err)
	}
	return post, nil
}

// FindAll returns all posts sorted by creation time
func (m *MongoClient) FindAll(ctx context.Context) ([]*models.BlogPost, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "created", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := m.posts.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find posts: %w", err)
	}
	posts := []*models.BlogPost{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}
	return posts, nil
}

// FindByID looks a post up by its hex id
func (m *MongoClient) FindByID(ctx context.Context, id string) (*models.BlogPost, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, pkg.ErrPostNotFound
	}
	return m.findOne(ctx, bson.M{"_id": oid})
}

// FindOne returns any post
func (m *MongoClient) FindOne(ctx context.Context) (*models.BlogPost, error) {
	return m.findOne(ctx, bson.D{})
}

func (m *MongoClient) findOne(ctx context.Context, filter interface{}) (*models.BlogPost, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	var post models.BlogPost
	err := m.posts.FindOne(ctx, filter).Decode(&post)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, pkg.ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find post: %w", err)
	}
	return &post, nil
}

// UpdateByID sets the fields present in update
func (m *MongoClient) UpdateByID(ctx context.Context, id string, update *models.PostUpdate) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return pkg.ErrPostNotFound
	}
	set := bson.M{}
	if update.Title != nil {
		set["title"] = *update.Title
	}
	if update.Content != nil {
		set["content"] = *update.Content
	}
	if update.Author != nil {
		set["author"] = update.Author
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	res, err := m.posts.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update post %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return pkg.ErrPostNotFound
	}
	return nil
}

// DeleteByID removes a post
func (m *MongoClient) DeleteByID(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return pkg.ErrPostNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	res, err := m.posts.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete post %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return pkg.ErrPostNotFound
	}
	return nil
}

// Count returns the number of stored posts
func (m *MongoClient) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return m.posts.CountDocuments(ctx, bson.D{})
}
