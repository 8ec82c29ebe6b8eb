package accounts

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/tubeaccounts/internal/common"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository keeps accounts in process memory. It backs the "memory"
// store driver and the service-level tests.
type MemoryRepository struct {
	mu       sync.RWMutex
	accounts map[string]*models.Account
	now      func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{accounts: make(map[string]*models.Account), now: time.Now}
}

func clone(a *models.Account) *models.Account {
	c := *a
	if a.RefreshToken != nil {
		v := *a.RefreshToken
		c.RefreshToken = &v
	}
	c.WatchHistory = append([]string(nil), a.WatchHistory...)
	return &c
}

func (r *MemoryRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.accounts[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(a), nil
}

func (r *MemoryRepository) lookup(username, email string) *models.Account {
	for _, a := range r.accounts {
		if (username != "" && a.Username == username) || (email != "" && a.Email == email) {
			return a
		}
	}
	return nil
}

func (r *MemoryRepository) FindByIdentifier(ctx context.Context, username, email string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a := r.lookup(username, email)
	if a == nil {
		return nil, common.ErrorNotFound
	}
	return clone(a), nil
}

func (r *MemoryRepository) ExistsByIdentifier(ctx context.Context, username, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.lookup(username, email) != nil, nil
}

func (r *MemoryRepository) Create(ctx context.Context, acc *models.NewAccount) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lookup(acc.Username, acc.Email) != nil {
		return nil, common.ErrDuplicateIdentifier
	}

	now := r.now().UTC()
	a := &models.Account{
		ID:            uuid.NewString(),
		Username:      acc.Username,
		Email:         acc.Email,
		FullName:      acc.FullName,
		PasswordHash:  acc.PasswordHash,
		AvatarURL:     acc.AvatarURL,
		CoverImageURL: acc.CoverImageURL,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	r.accounts[a.ID] = a
	return clone(a), nil
}

// mutate applies fn to the stored account under the write lock.
func (r *MemoryRepository) mutate(id string, fn func(a *models.Account) error) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if err := fn(a); err != nil {
		return nil, err
	}
	a.UpdatedAt = r.now().UTC()
	return clone(a), nil
}

func (r *MemoryRepository) SetRefreshToken(ctx context.Context, id string, token *string) error {
	_, err := r.mutate(id, func(a *models.Account) error {
		a.RefreshToken = nil
		if token != nil {
			v := *token
			a.RefreshToken = &v
		}
		return nil
	})
	return err
}

func (r *MemoryRepository) SwapRefreshToken(ctx context.Context, id, expected, next string) (bool, error) {
	swapped := false
	_, err := r.mutate(id, func(a *models.Account) error {
		if a.RefreshToken != nil && *a.RefreshToken == expected {
			a.RefreshToken = &next
			swapped = true
		}
		return nil
	})
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return false, err
	}
	return swapped, nil
}

func (r *MemoryRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	_, err := r.mutate(id, func(a *models.Account) error {
		a.PasswordHash = hash
		a.RefreshToken = nil
		return nil
	})
	return err
}

func (r *MemoryRepository) UpdateDetails(ctx context.Context, id, fullName, email string) (*models.Account, error) {
	return r.mutate(id, func(a *models.Account) error {
		if other := r.lookup("", email); other != nil && other.ID != a.ID {
			return common.ErrDuplicateIdentifier
		}
		a.FullName = fullName
		a.Email = email
		return nil
	})
}

func (r *MemoryRepository) SetAvatar(ctx context.Context, id, url string) (*models.Account, error) {
	return r.mutate(id, func(a *models.Account) error {
		a.AvatarURL = url
		return nil
	})
}

func (r *MemoryRepository) SetCoverImage(ctx context.Context, id, url string) (*models.Account, error) {
	return r.mutate(id, func(a *models.Account) error {
		a.CoverImageURL = url
		return nil
	})
}

// AppendWatchHistory records a watched video id for the account.
func (r *MemoryRepository) AppendWatchHistory(ctx context.Context, id, videoID string) error {
	_, err := r.mutate(id, func(a *models.Account) error {
		a.WatchHistory = append(a.WatchHistory, videoID)
		return nil
	})
	return err
}
