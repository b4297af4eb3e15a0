// Package news reads news mentions from MongoDB. Mentions are written by an
// external ingestion pipeline; the engine only checks for their presence.
package news

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	databaseName       = "stock_alerts"
	mentionsCollection = "news_mentions"

	connectTimeout = 30 * time.Second
	queryTimeout   = 10 * time.Second
)

// Mention is one news reference to a stock symbol
type Mention struct {
	Symbol      string    `bson:"symbol"`
	Headline    string    `bson:"headline"`
	Source      string    `bson:"source"`
	Sentiment   string    `bson:"sentiment"` // positive, negative, neutral
	PublishedAt time.Time `bson:"published_at"`
}

// Store is a MongoDB-backed news mention reader
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
	log        *logrus.Entry
}

// Connect establishes the MongoDB connection and verifies it with a ping
func Connect(ctx context.Context, uri string, log *logrus.Logger) (*Store, error) {
	if uri == "" {
		return nil, errors.New("MONGODB_URI not set")
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetMaxPoolSize(10).
		SetRetryReads(true)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	store := &Store{
		client:     client,
		collection: client.Database(databaseName).Collection(mentionsCollection),
		log:        log.WithField("component", "news_store"),
	}
	store.log.Info("MongoDB news store connected")
	return store, nil
}

// HasMentionSince reports whether any mention of symbol published after
// since exists, optionally filtered by sentiment. Presence only; the match
// count does not matter.
func (s *Store) HasMentionSince(ctx context.Context, symbol, sentiment string, since time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.M{
		"symbol":       symbol,
		"published_at": bson.M{"$gt": since},
	}
	if sentiment != "" {
		filter["sentiment"] = sentiment
	}

	err := s.collection.FindOne(ctx, filter, options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("news mention lookup failed: %w", err)
	}
	return true, nil
}

// Close disconnects the MongoDB client
func (s *Store) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Disabled is the news store used when MongoDB is not configured. News
// alerts simply never trigger.
type Disabled struct{}

// HasMentionSince always reports no mentions
func (Disabled) HasMentionSince(ctx context.Context, symbol, sentiment string, since time.Time) (bool, error) {
	return false, nil
}
