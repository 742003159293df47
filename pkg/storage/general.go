package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/solorad/blog-api/pkg/config"
	"github.com/solorad/blog-api/pkg/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const (
	bulkSize        = 500
	postsCollection = "posts"
	opTimeout       = 5 * time.Second
)

// MongoClient is an implementation of pkg.PostStore backed by MongoDB
type MongoClient struct {
	Client *mongo.Client
	db     *mongo.Database
	posts  *mongo.Collection
}

// NewMongoClient init connection with MongoDb. The database name falls back to
// the one in uri, then to config.DefaultDatabaseName.
func NewMongoClient(ctx context.Context, uri, dbName string, timeout time.Duration) (*MongoClient, error) {
	if dbName == "" {
		dbName = config.DatabaseFromURI(uri, config.DefaultDatabaseName)
	}
	writeOptions := writeconcern.New(
		writeconcern.W(1),
		writeconcern.J(true),
	)
	opts := options.Client().
		SetWriteConcern(writeOptions).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout).
		ApplyURI(uri)

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	m := &MongoClient{
		Client: client,
		db:     client.Database(dbName),
	}
	m.posts = m.GetCollection(postsCollection)

	if err := m.Ping(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	m.CreateIndex(ctx, bson.D{{Key: "created", Value: 1}}, "created_1")
	log.Infof("Connected to MongoDB database %q", dbName)
	return m, nil
}

// GetCollection returns a collection of the service database, created lazily by MongoDB
func (m *MongoClient) GetCollection(collectionName string) *mongo.Collection {
	return m.db.Collection(collectionName)
}

// Ping checks the primary is reachable
func (m *MongoClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return m.Client.Ping(ctx, readpref.Primary())
}

// CreateIndex ensures an index on the posts collection. Failures are logged, not returned.
func (m *MongoClient) CreateIndex(ctx context.Context, keys bson.D, indexName string) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, e := m.posts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    keys,
		Options: options.Index().SetName(indexName),
	})
	if e != nil {
		log.Errorf("Error occurred on %v index creation: %v", indexName, e)
	} else {
		log.Infof("Ensure in index for %v", indexName)
	}
}

// DropDatabase wipes the service database and restores its indexes
func (m *MongoClient) DropDatabase(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := m.db.Drop(ctx); err != nil {
		return fmt.Errorf("drop database %s: %w", m.db.Name(), err)
	}
	m.CreateIndex(ctx, bson.D{{Key: "created", Value: 1}}, "created_1")
	return nil
}

// Close releases the client connection
func (m *MongoClient) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}
