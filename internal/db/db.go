// Package db manages the MongoDB connection and collections.
package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const dbName = "messenger"

// Client wraps mongo.Client and exposes the collections the messaging core
// reads and writes.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to MongoDB, verifies the connection with a ping and returns
// a ready Client.
func New(ctx context.Context, mongoURI string) (*Client, error) {
	opts := options.Client().
		ApplyURI(mongoURI).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Client{
		client: client,
		db:     client.Database(dbName),
	}, nil
}

// UsersCollection returns the users collection.
func (c *Client) UsersCollection() *mongo.Collection {
	return c.db.Collection("users")
}

// MessagesCollection returns the chat_messages collection.
func (c *Client) MessagesCollection() *mongo.Collection {
	return c.db.Collection("chat_messages")
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// CreateIndexes creates the indexes the stores rely on. Safe to call on
// every startup; Mongo treats an identical existing index as a no-op.
func (c *Client) CreateIndexes(ctx context.Context) error {
	if _, err := c.UsersCollection().Indexes().CreateMany(ctx, userIndexModels()); err != nil {
		return fmt.Errorf("failed to create users index: %w", err)
	}
	if _, err := c.MessagesCollection().Indexes().CreateMany(ctx, messageIndexModels()); err != nil {
		return fmt.Errorf("failed to create message indexes: %w", err)
	}
	return nil
}

// Index keys are bson.D documents: the driver rejects multi-key maps for
// ordered parameters before any server round-trip.

func userIndexModels() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			// Usernames are unique so identity lookups by name are
			// unambiguous.
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
}

func messageIndexModels() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			// History queries filter on the (sender, recipient) pair and
			// order by creation time.
			Keys: bson.D{
				{Key: "sender_id", Value: 1},
				{Key: "recipient_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
		},
		{
			// Unread counting and mark-read both filter on recipient + flag.
			Keys: bson.D{
				{Key: "recipient_id", Value: 1},
				{Key: "is_read", Value: 1},
			},
		},
		{
			Keys: bson.D{{Key: "created_at", Value: -1}},
		},
	}
}
