package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tubeaccounts/internal/common"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the Mongo collection holding account documents.
const CollectionName = "users"

type accountDocument struct {
	ID           primitive.ObjectID   `bson:"_id"`
	Username     string               `bson:"username"`
	Email        string               `bson:"email"`
	FullName     string               `bson:"fullname"`
	Avatar       string               `bson:"avatar"`
	CoverImage   string               `bson:"coverImage"`
	Password     string               `bson:"password"`
	RefreshToken *string              `bson:"refreshToken,omitempty"`
	WatchHistory []primitive.ObjectID `bson:"watchHistory"`
	CreatedAt    time.Time            `bson:"createdAt"`
	UpdatedAt    time.Time            `bson:"updatedAt"`
}

func (d *accountDocument) toModel() *models.Account {
	a := &models.Account{
		ID:            d.ID.Hex(),
		Username:      d.Username,
		Email:         d.Email,
		FullName:      d.FullName,
		PasswordHash:  d.Password,
		AvatarURL:     d.Avatar,
		CoverImageURL: d.CoverImage,
		RefreshToken:  d.RefreshToken,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
	for _, v := range d.WatchHistory {
		a.WatchHistory = append(a.WatchHistory, v.Hex())
	}
	return a
}

type MongoRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(CollectionName), now: time.Now}
}

func mapMongoError(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return common.ErrorNotFound
	case mongo.IsDuplicateKeyError(err):
		return common.ErrDuplicateIdentifier
	default:
		return fmt.Errorf("db error: %w", err)
	}
}

func identifierFilter(username, email string) (bson.M, bool) {
	var or bson.A
	if username != "" {
		or = append(or, bson.M{"username": username})
	}
	if email != "" {
		or = append(or, bson.M{"email": email})
	}
	if len(or) == 0 {
		return nil, false
	}
	return bson.M{"$or": or}, true
}

func (r *MongoRepository) findOne(ctx context.Context, filter any) (*models.Account, error) {
	var doc accountDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mapMongoError(err)
	}
	return doc.toModel(), nil
}

func (r *MongoRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, common.ErrorNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *MongoRepository) FindByIdentifier(ctx context.Context, username, email string) (*models.Account, error) {
	filter, ok := identifierFilter(username, email)
	if !ok {
		return nil, common.ErrorNotFound
	}
	return r.findOne(ctx, filter)
}

func (r *MongoRepository) ExistsByIdentifier(ctx context.Context, username, email string) (bool, error) {
	filter, ok := identifierFilter(username, email)
	if !ok {
		return false, nil
	}
	n, err := r.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *MongoRepository) Create(ctx context.Context, acc *models.NewAccount) (*models.Account, error) {
	now := r.now().UTC()
	doc := &accountDocument{
		ID:           primitive.NewObjectID(),
		Username:     acc.Username,
		Email:        acc.Email,
		FullName:     acc.FullName,
		Avatar:       acc.AvatarURL,
		CoverImage:   acc.CoverImageURL,
		Password:     acc.PasswordHash,
		WatchHistory: []primitive.ObjectID{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return nil, mapMongoError(err)
	}
	return doc.toModel(), nil
}

func (r *MongoRepository) updateOne(ctx context.Context, filter, update bson.M) (int64, error) {
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return 0, mapMongoError(err)
	}
	return res.MatchedCount, nil
}

func (r *MongoRepository) SetRefreshToken(ctx context.Context, id string, token *string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return common.ErrorNotFound
	}

	update := bson.M{"$set": bson.M{"updatedAt": r.now().UTC()}}
	if token != nil {
		update["$set"].(bson.M)["refreshToken"] = *token
	} else {
		update["$unset"] = bson.M{"refreshToken": 1}
	}

	n, err := r.updateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *MongoRepository) SwapRefreshToken(ctx context.Context, id, expected, next string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}

	n, err := r.updateOne(ctx,
		bson.M{"_id": oid, "refreshToken": expected},
		bson.M{"$set": bson.M{"refreshToken": next, "updatedAt": r.now().UTC()}},
	)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *MongoRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return common.ErrorNotFound
	}

	n, err := r.updateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$set":   bson.M{"password": hash, "updatedAt": r.now().UTC()},
		"$unset": bson.M{"refreshToken": 1},
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *MongoRepository) setFields(ctx context.Context, id string, fields bson.M) (*models.Account, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, common.ErrorNotFound
	}
	fields["updatedAt"] = r.now().UTC()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc accountDocument
	err = r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": fields}, opts).Decode(&doc)
	if err != nil {
		return nil, mapMongoError(err)
	}
	return doc.toModel(), nil
}

func (r *MongoRepository) UpdateDetails(ctx context.Context, id, fullName, email string) (*models.Account, error) {
	return r.setFields(ctx, id, bson.M{"fullname": fullName, "email": email})
}

func (r *MongoRepository) SetAvatar(ctx context.Context, id, url string) (*models.Account, error) {
	return r.setFields(ctx, id, bson.M{"avatar": url})
}

func (r *MongoRepository) SetCoverImage(ctx context.Context, id, url string) (*models.Account, error) {
	return r.setFields(ctx, id, bson.M{"coverImage": url})
}
