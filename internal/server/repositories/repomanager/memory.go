package repomanager

import (
	"context"

	"github.com/dmitrijs2005/tubeaccounts/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/repositories/profiles"
)

// MemoryRepositoryManager keeps everything in process memory.
type MemoryRepositoryManager struct {
	accounts *accounts.MemoryRepository
	profiles *profiles.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	accs := accounts.NewMemoryRepository()
	return &MemoryRepositoryManager{accounts: accs, profiles: profiles.NewMemoryRepository(accs)}
}

func (m *MemoryRepositoryManager) Accounts() accounts.Repository { return m.accounts }

func (m *MemoryRepositoryManager) Profiles() profiles.Repository { return m.profiles }

func (m *MemoryRepositoryManager) RunMigrations(ctx context.Context) error { return nil }

func (m *MemoryRepositoryManager) Ping(ctx context.Context) error { return nil }

func (m *MemoryRepositoryManager) Close(ctx context.Context) error { return nil }
