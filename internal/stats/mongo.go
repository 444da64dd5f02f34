package stats

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoClient adapts a *mongo.Client to the collector's Client interface.
type MongoClient struct {
	client *mongo.Client
}

var _ Client = (*MongoClient)(nil)

// Connect dials the deployment at uri and verifies the connection with a ping.
func Connect(ctx context.Context, uri string) (*MongoClient, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return &MongoClient{client: client}, nil
}

// ListDatabaseNames returns the names of all databases on the deployment.
func (m *MongoClient) ListDatabaseNames(ctx context.Context) ([]string, error) {
	names, err := m.client.ListDatabaseNames(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// DatabaseStats runs dbStats against the named database.
func (m *MongoClient) DatabaseStats(ctx context.Context, name string) (map[string]any, error) {
	var doc bson.M
	cmd := bson.D{{Key: "dbStats", Value: 1}}
	if err := m.client.Database(name).RunCommand(ctx, cmd).Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Disconnect closes the underlying connection.
func (m *MongoClient) Disconnect(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
