// Package profiles serves the read-only relationship queries over accounts:
// a channel page with subscription counts and a user's watch history.
package profiles

import (
	"context"

	"github.com/dmitrijs2005/tubeaccounts/internal/server/models"
)

type Repository interface {
	// ChannelProfile returns common.ErrorNotFound for an unknown username.
	// viewerID may be empty, in which case IsSubscribed is false.
	ChannelProfile(ctx context.Context, username, viewerID string) (*models.ChannelProfile, error)
	WatchHistory(ctx context.Context, accountID string) ([]models.WatchHistoryItem, error)
}
