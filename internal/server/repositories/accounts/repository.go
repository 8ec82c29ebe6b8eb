// Package accounts persists the Account record. Each backend guarantees
// single-record atomicity for every write and unique username and email.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/tubeaccounts/internal/server/models"
)

// Repository is the storage contract for accounts.
//
// Lookups return common.ErrorNotFound when nothing matches; inserts and
// email updates return common.ErrDuplicateIdentifier when a unique key is
// already taken.
type Repository interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
	// FindByIdentifier matches on username or email; an empty value is ignored.
	FindByIdentifier(ctx context.Context, username, email string) (*models.Account, error)
	ExistsByIdentifier(ctx context.Context, username, email string) (bool, error)
	Create(ctx context.Context, acc *models.NewAccount) (*models.Account, error)

	SetRefreshToken(ctx context.Context, id string, token *string) error
	// SwapRefreshToken replaces the stored refresh token only if it still
	// equals expected. It reports whether the swap happened.
	SwapRefreshToken(ctx context.Context, id, expected, next string) (bool, error)
	// UpdatePasswordHash stores hash and clears the refresh token in one write.
	UpdatePasswordHash(ctx context.Context, id, hash string) error

	UpdateDetails(ctx context.Context, id, fullName, email string) (*models.Account, error)
	SetAvatar(ctx context.Context, id, url string) (*models.Account, error)
	SetCoverImage(ctx context.Context, id, url string) (*models.Account, error)
}
