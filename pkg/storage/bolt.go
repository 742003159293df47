package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/boltdb/bolt"
	"github.com/solorad/blog-api/pkg"
	"github.com/solorad/blog-api/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var postsBucket = []byte(postsCollection)

// BoltStore is an implementation of pkg.PostStore whose backend is a Bolt
// database. Posts are kept as BSON documents keyed by their hex id.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the database file at path
func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt database %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(postsBucket)
		if err != nil {
			return fmt.Errorf("could not ensure bucket %q exists: %w", postsBucket, err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

func putPost(b *bolt.Bucket, p *models.BlogPost) error {
	data, err := bson.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode post %s: %w", p.ID.Hex(), err)
	}
	return b.Put([]byte(p.ID.Hex()), data)
}

func decodePost(data []byte) (*models.BlogPost, error) {
	var p models.BlogPost
	if err := bson.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode post: %w", err)
	}
	return &p, nil
}

// key validates id and returns the bucket key for it
func key(id string) ([]byte, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, false
	}
	return []byte(oid.Hex()), true
}

// InsertMany stores posts in one transaction, assigning ids and creation times
func (s *BoltStore) InsertMany(ctx context.Context, posts []*models.BlogPost) ([]*models.BlogPost, error) {
	ts := now()
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(postsBucket)
		for _, p := range posts {
			prepare(p, ts)
			if err := putPost(b, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// InsertOne stores a single post
func (s *BoltStore) InsertOne(ctx context.Context, post *models.BlogPost) (*models.BlogPost, error) {
	posts, err := s.InsertMany(ctx, []*models.BlogPost{post})
	if err != nil {
		return nil, err
	}
	return posts[0], nil
}

// FindAll returns every post ordered by creation time, then id
func (s *BoltStore) FindAll(ctx context.Context) ([]*models.BlogPost, error) {
	posts := []*models.BlogPost{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(postsBucket).ForEach(func(_, v []byte) error {
			p, err := decodePost(v)
			if err != nil {
				return err
			}
			posts = append(posts, p)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	// Keys are ObjectIDs, so ForEach already yields ids in ascending order.
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].Created.Before(posts[j].Created)
	})
	return posts, nil
}

// FindByID returns the post with the given hex id
func (s *BoltStore) FindByID(ctx context.Context, id string) (post *models.BlogPost, err error) {
	k, ok := key(id)
	if !ok {
		return nil, pkg.ErrPostNotFound
	}
	err = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(postsBucket).Get(k)
		if v == nil {
			return pkg.ErrPostNotFound
		}
		post, err = decodePost(v)
		return err
	})
	return post, err
}

// FindOne returns the post with the lowest id
func (s *BoltStore) FindOne(ctx context.Context) (post *models.BlogPost, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		_, v := tx.Bucket(postsBucket).Cursor().First()
		if v == nil {
			return pkg.ErrPostNotFound
		}
		post, err = decodePost(v)
		return err
	})
	return post, err
}

// UpdateByID applies update to an existing post
func (s *BoltStore) UpdateByID(ctx context.Context, id string, update *models.PostUpdate) error {
	k, ok := key(id)
	if !ok {
		return pkg.ErrPostNotFound
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(postsBucket)
		v := b.Get(k)
		if v == nil {
			return pkg.ErrPostNotFound
		}
		p, err := decodePost(v)
		if err != nil {
			return err
		}
		update.Apply(p)
		return putPost(b, p)
	})
}

// DeleteByID removes an existing post
func (s *BoltStore) DeleteByID(ctx context.Context, id string) error {
	k, ok := key(id)
	if !ok {
		return pkg.ErrPostNotFound
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(postsBucket)
		if b.Get(k) == nil {
			return pkg.ErrPostNotFound
		}
		return b.Delete(k)
	})
}

// Count returns the number of stored posts
func (s *BoltStore) Count(ctx context.Context) (n int64, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		n = int64(tx.Bucket(postsBucket).Stats().KeyN)
		return nil
	})
	return n, err
}

// DropDatabase removes every post by recreating the bucket
func (s *BoltStore) DropDatabase(ctx context.Context) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(postsBucket); err != nil && err != bolt.ErrBucketNotFound {
			return fmt.Errorf("drop bucket %q: %w", postsBucket, err)
		}
		_, err := tx.CreateBucket(postsBucket)
		return err
	})
}

// Ping checks the posts bucket is readable
func (s *BoltStore) Ping(ctx context.Context) error {
	return s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(postsBucket) == nil {
			return fmt.Errorf("bucket %q missing", postsBucket)
		}
		return nil
	})
}

// Close releases the database file lock
func (s *BoltStore) Close(ctx context.Context) error {
	return s.db.Close()
}
