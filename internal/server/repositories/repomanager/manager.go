package repomanager

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/tubeaccounts/internal/server/config"

	"github.com/dmitrijs2005/tubeaccounts/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/repositories/profiles"
)

// RepositoryManager vends the repositories of one storage backend and owns
// its connection.
type RepositoryManager interface {
	Accounts() accounts.Repository
	Profiles() profiles.Repository
	// RunMigrations brings the schema or indexes up to date.
	RunMigrations(ctx context.Context) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// New builds the manager for cfg.StoreDriver.
func New(ctx context.Context, cfg *config.Config) (RepositoryManager, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		m, err := NewPostgresRepositoryManager(cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		return m, nil
	case config.StoreDriverMongo:
		m, err := NewMongoRepositoryManager(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return m, nil
	case config.StoreDriverMemory:
		return NewMemoryRepositoryManager(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
