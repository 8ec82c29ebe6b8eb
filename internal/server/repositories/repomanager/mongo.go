package repomanager

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/tubeaccounts/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/repositories/profiles"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoRepositoryManager vends MongoDB-backed repositories over one database.
type MongoRepositoryManager struct {
	db       *mongo.Database
	accounts *accounts.MongoRepository
	profiles *profiles.MongoRepository
}

// mongoConnect is a seam for testing mongo.Connect.
var mongoConnect = mongo.Connect

// NewMongoRepositoryManager connects to uri and uses database name.
func NewMongoRepositoryManager(ctx context.Context, uri, name string) (*MongoRepositoryManager, error) {
	client, err := mongoConnect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect error: %w", err)
	}
	return NewMongoRepositoryManagerFromDB(client.Database(name)), nil
}

// NewMongoRepositoryManagerFromDB wraps an existing database handle.
func NewMongoRepositoryManagerFromDB(db *mongo.Database) *MongoRepositoryManager {
	return &MongoRepositoryManager{
		db:       db,
		accounts: accounts.NewMongoRepository(db),
		profiles: profiles.NewMongoRepository(db),
	}
}

func (m *MongoRepositoryManager) Accounts() accounts.Repository { return m.accounts }

func (m *MongoRepositoryManager) Profiles() profiles.Repository { return m.profiles }

// RunMigrations creates the unique identity indexes and the subscription
// lookup indexes. Creating an existing index is a no-op in MongoDB.
func (m *MongoRepositoryManager) RunMigrations(ctx context.Context) error {
	_, err := m.db.Collection(accounts.CollectionName).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("create account indexes: %w", err)
	}

	_, err = m.db.Collection(profiles.SubscriptionsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "subscriber", Value: 1}, {Key: "channel", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "channel", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create subscription indexes: %w", err)
	}
	return nil
}

func (m *MongoRepositoryManager) Ping(ctx context.Context) error {
	return m.db.Client().Ping(ctx, readpref.Primary())
}

func (m *MongoRepositoryManager) Close(ctx context.Context) error {
	return m.db.Client().Disconnect(ctx)
}
