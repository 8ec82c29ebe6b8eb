package profiles

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/tubeaccounts/internal/common"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Collection names shared with the accounts repository and index bootstrap.
const (
	UsersCollection         = "users"
	VideosCollection        = "videos"
	SubscriptionsCollection = "subscriptions"
)

type channelDocument struct {
	ID                        primitive.ObjectID `bson:"_id"`
	Username                  string             `bson:"username"`
	FullName                  string             `bson:"fullname"`
	Email                     string             `bson:"email"`
	Avatar                    string             `bson:"avatar"`
	CoverImage                string             `bson:"coverImage"`
	SubscribersCount          int64              `bson:"subscribersCount"`
	ChannelsSubscribedToCount int64              `bson:"channelsSubscribedToCount"`
	IsSubscribed              bool               `bson:"isSubscribed"`
}

type ownerDocument struct {
	ID       primitive.ObjectID `bson:"_id"`
	Username string             `bson:"username"`
	FullName string             `bson:"fullname"`
	Avatar   string             `bson:"avatar"`
}

type videoDocument struct {
	ID          primitive.ObjectID `bson:"_id"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	VideoFile   string             `bson:"videoFile"`
	Thumbnail   string             `bson:"thumbnail"`
	Duration    float64            `bson:"duration"`
	Views       int64              `bson:"views"`
	Owner       ownerDocument      `bson:"owner"`
}

type historyDocument struct {
	WatchHistory []videoDocument `bson:"watchHistory"`
}

type MongoRepository struct {
	users *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{users: db.Collection(UsersCollection)}
}

func channelPipeline(username string, viewer any) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"username": username}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         SubscriptionsCollection,
			"localField":   "_id",
			"foreignField": "channel",
			"as":           "subscribers",
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         SubscriptionsCollection,
			"localField":   "_id",
			"foreignField": "subscriber",
			"as":           "subscribedTo",
		}}},
		{{Key: "$addFields", Value: bson.M{
			"subscribersCount":          bson.M{"$size": "$subscribers"},
			"channelsSubscribedToCount": bson.M{"$size": "$subscribedTo"},
			"isSubscribed": bson.M{"$cond": bson.M{
				"if":   bson.M{"$in": bson.A{viewer, "$subscribers.subscriber"}},
				"then": true,
				"else": false,
			}},
		}}},
		{{Key: "$project", Value: bson.M{
			"username":                  1,
			"fullname":                  1,
			"email":                     1,
			"avatar":                    1,
			"coverImage":                1,
			"subscribersCount":          1,
			"channelsSubscribedToCount": 1,
			"isSubscribed":              1,
		}}},
	}
}

func (r *MongoRepository) ChannelProfile(ctx context.Context, username, viewerID string) (*models.ChannelProfile, error) {
	var viewer any
	if oid, err := primitive.ObjectIDFromHex(viewerID); err == nil {
		viewer = oid
	}

	cur, err := r.users.Aggregate(ctx, channelPipeline(username, viewer))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer cur.Close(ctx)

	var docs []channelDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if len(docs) == 0 {
		return nil, common.ErrorNotFound
	}

	d := docs[0]
	return &models.ChannelProfile{
		ID:                        d.ID.Hex(),
		Username:                  d.Username,
		FullName:                  d.FullName,
		Email:                     d.Email,
		AvatarURL:                 d.Avatar,
		CoverImageURL:             d.CoverImage,
		SubscribersCount:          d.SubscribersCount,
		ChannelsSubscribedToCount: d.ChannelsSubscribedToCount,
		IsSubscribed:              d.IsSubscribed,
	}, nil
}

func historyPipeline(id primitive.ObjectID) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": id}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         VideosCollection,
			"localField":   "watchHistory",
			"foreignField": "_id",
			"as":           "watchHistory",
			"pipeline": bson.A{
				bson.M{"$lookup": bson.M{
					"from":         UsersCollection,
					"localField":   "owner",
					"foreignField": "_id",
					"as":           "owner",
					"pipeline": bson.A{
						bson.M{"$project": bson.M{"fullname": 1, "username": 1, "avatar": 1}},
					},
				}},
				bson.M{"$addFields": bson.M{"owner": bson.M{"$first": "$owner"}}},
			},
		}}},
		{{Key: "$project", Value: bson.M{"watchHistory": 1}}},
	}
}

// WatchHistory lists the videos accountID has watched. An unknown or
// malformed id has an empty history.
func (r *MongoRepository) WatchHistory(ctx context.Context, accountID string) ([]models.WatchHistoryItem, error) {
	oid, err := primitive.ObjectIDFromHex(accountID)
	if err != nil {
		return []models.WatchHistoryItem{}, nil
	}

	cur, err := r.users.Aggregate(ctx, historyPipeline(oid))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer cur.Close(ctx)

	var docs []historyDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if len(docs) == 0 {
		return []models.WatchHistoryItem{}, nil
	}

	items := make([]models.WatchHistoryItem, 0, len(docs[0].WatchHistory))
	for _, v := range docs[0].WatchHistory {
		items = append(items, models.WatchHistoryItem{
			ID:          v.ID.Hex(),
			Title:       v.Title,
			Description: v.Description,
			VideoFile:   v.VideoFile,
			Thumbnail:   v.Thumbnail,
			Duration:    v.Duration,
			Views:       v.Views,
			Owner: models.VideoOwner{
				ID:        v.Owner.ID.Hex(),
				Username:  v.Owner.Username,
				FullName:  v.Owner.FullName,
				AvatarURL: v.Owner.Avatar,
			},
		})
	}
	return items, nil
}
