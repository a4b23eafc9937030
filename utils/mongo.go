package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/raushankrgupta/virtual-tryon-studio/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const tryOnCollection = "tryons"

// HistoryStore records try-on attempts.
type HistoryStore interface {
	RecordTryOn(ctx context.Context, record models.TryOn) error
	ListTryOns(ctx context.Context, sessionID string, limit int64) ([]models.TryOn, error)
	Ping(ctx context.Context) error
}

// MongoHistory stores try-on records in MongoDB
type MongoHistory struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// ConnectMongo initializes the MongoDB connection
func ConnectMongo(uri, databaseName string) (*MongoHistory, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoHistory{
		client:     client,
		collection: client.Database(databaseName).Collection(tryOnCollection),
	}, nil
}

func (m *MongoHistory) RecordTryOn(ctx context.Context, record models.TryOn) error {
	if _, err := m.collection.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("failed to save try-on record: %w", err)
	}
	return nil
}

// ListTryOns returns the latest records of a session, newest first.
func (m *MongoHistory) ListTryOns(ctx context.Context, sessionID string, limit int64) ([]models.TryOn, error) {
	findOptions := options.Find()
	findOptions.SetSort(bson.D{{Key: "created_at", Value: -1}})
	findOptions.SetLimit(limit)

	cursor, err := m.collection.Find(ctx, bson.M{"session_id": sessionID}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch try-on records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []models.TryOn
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode try-on records: %w", err)
	}
	if records == nil {
		records = []models.TryOn{}
	}
	return records, nil
}

func (m *MongoHistory) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

// Disconnect closes the client.
func (m *MongoHistory) Disconnect(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
