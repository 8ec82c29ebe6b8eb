package profiles

import (
	"context"
	"errors"
	"sync"

	"github.com/dmitrijs2005/tubeaccounts/internal/common"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/models"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/repositories/accounts"
	"github.com/google/uuid"
)

// Video is a catalogue entry in the in-memory store.
type Video struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	VideoFile   string
	Thumbnail   string
	Duration    float64
	Views       int64
}

// MemoryRepository answers profile queries from an accounts.Repository plus
// in-memory subscriptions and videos.
type MemoryRepository struct {
	accounts accounts.Repository

	mu sync.RWMutex
	// subscribers[channelID] is the set of subscriber ids.
	subscribers map[string]map[string]struct{}
	videos      map[string]Video
}

func NewMemoryRepository(accounts accounts.Repository) *MemoryRepository {
	return &MemoryRepository{
		accounts:    accounts,
		subscribers: make(map[string]map[string]struct{}),
		videos:      make(map[string]Video),
	}
}

func (r *MemoryRepository) Subscribe(subscriberID, channelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.subscribers[channelID]
	if !ok {
		set = make(map[string]struct{})
		r.subscribers[channelID] = set
	}
	set[subscriberID] = struct{}{}
}

// AddVideo stores v, assigning an id when it has none, and returns the id.
func (r *MemoryRepository) AddVideo(v Video) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	r.videos[v.ID] = v
	return v.ID
}

func (r *MemoryRepository) ChannelProfile(ctx context.Context, username, viewerID string) (*models.ChannelProfile, error) {
	a, err := r.accounts.FindByIdentifier(ctx, username, "")
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.subscribers[a.ID]
	_, subscribed := subs[viewerID]

	var subscribedTo int64
	for _, set := range r.subscribers {
		if _, ok := set[a.ID]; ok {
			subscribedTo++
		}
	}

	return &models.ChannelProfile{
		ID:                        a.ID,
		Username:                  a.Username,
		FullName:                  a.FullName,
		Email:                     a.Email,
		AvatarURL:                 a.AvatarURL,
		CoverImageURL:             a.CoverImageURL,
		SubscribersCount:          int64(len(subs)),
		ChannelsSubscribedToCount: subscribedTo,
		IsSubscribed:              viewerID != "" && subscribed,
	}, nil
}

func (r *MemoryRepository) WatchHistory(ctx context.Context, accountID string) ([]models.WatchHistoryItem, error) {
	a, err := r.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return []models.WatchHistoryItem{}, nil
		}
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	items := []models.WatchHistoryItem{}
	for _, id := range a.WatchHistory {
		v, ok := r.videos[id]
		if !ok {
			continue
		}
		owner, err := r.accounts.FindByID(ctx, v.OwnerID)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		item := models.WatchHistoryItem{
			ID:          v.ID,
			Title:       v.Title,
			Description: v.Description,
			VideoFile:   v.VideoFile,
			Thumbnail:   v.Thumbnail,
			Duration:    v.Duration,
			Views:       v.Views,
		}
		if owner != nil {
			item.Owner = models.VideoOwner{
				ID:        owner.ID,
				Username:  owner.Username,
				FullName:  owner.FullName,
				AvatarURL: owner.AvatarURL,
			}
		}
		items = append(items, item)
	}
	return items, nil
}
