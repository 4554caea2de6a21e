// Package mongo is the MongoDB implementation of the user and request
// stores. Uniqueness of emails and request ids is enforced by indexes.
package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/vpportal/vpportal/backend/internal/service"
	"github.com/vpportal/vpportal/shared/config"
	"github.com/vpportal/vpportal/shared/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	queryTimeout   = 5 * time.Second
	connectTimeout = 10 * time.Second

	usersCollection    = "users"
	requestsCollection = "requests"
)

var (
	_ service.UserStorage    = (*Storage)(nil)
	_ service.RequestStorage = (*Storage)(nil)
)

type Storage struct {
	client   *mongo.Client
	users    *mongo.Collection
	requests *mongo.Collection
}

func New(ctx context.Context, cfg config.Mongo) (*Storage, error) {
	logger.Log.Info("connecting to mongo", "db", cfg.Database)

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(cfg.Database)
	s := &Storage{
		client:   client,
		users:    db.Collection(usersCollection),
		requests: db.Collection(requestsCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}

	logger.Log.Info("successfully connected to mongo")
	return s, nil
}

func (s *Storage) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "resetPasswordToken", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}

	_, err = s.requests.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "requestId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create request indexes: %w", err)
	}
	return nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Storage) Cleanup() error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}
