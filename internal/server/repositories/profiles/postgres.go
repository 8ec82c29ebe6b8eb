package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/tubeaccounts/internal/common"
	"github.com/dmitrijs2005/tubeaccounts/internal/dbx"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/models"
	"github.com/google/uuid"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) ChannelProfile(ctx context.Context, username, viewerID string) (*models.ChannelProfile, error) {
	query :=
		`SELECT u.id, u.username, u.full_name, u.email, u.avatar_url, u.cover_image_url,
		        (SELECT COUNT(*) FROM subscriptions s WHERE s.channel_id = u.id),
		        (SELECT COUNT(*) FROM subscriptions s WHERE s.subscriber_id = u.id),
		        EXISTS (SELECT 1 FROM subscriptions s
		                WHERE s.channel_id = u.id AND s.subscriber_id = $2::uuid)
		 FROM users u
		 WHERE u.username = $1`

	// A viewer id that is not a uuid is never subscribed.
	var viewer any
	if id, err := uuid.Parse(viewerID); err == nil {
		viewer = id.String()
	}

	p := &models.ChannelProfile{}
	err := r.db.QueryRowContext(ctx, query, username, viewer).Scan(
		&p.ID, &p.Username, &p.FullName, &p.Email, &p.AvatarURL, &p.CoverImageURL,
		&p.SubscribersCount, &p.ChannelsSubscribedToCount, &p.IsSubscribed,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

// WatchHistory lists the videos accountID has watched, oldest first. An
// unknown or malformed id has an empty history.
func (r *PostgresRepository) WatchHistory(ctx context.Context, accountID string) ([]models.WatchHistoryItem, error) {
	query :=
		`SELECT v.id, v.title, v.description, v.video_file, v.thumbnail, v.duration, v.views,
		        o.id, o.username, o.full_name, o.avatar_url
		 FROM watch_history w
		 JOIN videos v ON v.id = w.video_id
		 JOIN users o ON o.id = v.owner_id
		 WHERE w.user_id = $1::uuid
		 ORDER BY w.position`

	items := []models.WatchHistoryItem{}
	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		if dbx.IsInvalidTextRepresentation(err) {
			return items, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it models.WatchHistoryItem
		if err := rows.Scan(&it.ID, &it.Title, &it.Description, &it.VideoFile, &it.Thumbnail,
			&it.Duration, &it.Views, &it.Owner.ID, &it.Owner.Username, &it.Owner.FullName,
			&it.Owner.AvatarURL); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return items, nil
}
