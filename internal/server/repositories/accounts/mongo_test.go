package accounts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/tubeaccounts/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func accountBSON(id primitive.ObjectID, refresh string) bson.D {
	d := bson.D{
		{Key: "_id", Value: id},
		{Key: "username", Value: "alice"},
		{Key: "email", Value: "alice@example.com"},
		{Key: "fullname", Value: "Alice A"},
		{Key: "avatar", Value: "https://cdn/a.png"},
		{Key: "coverImage", Value: ""},
		{Key: "password", Value: "$2a$10$digest"},
		{Key: "watchHistory", Value: bson.A{}},
		{Key: "createdAt", Value: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{Key: "updatedAt", Value: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
	}
	if refresh != "" {
		d = append(d, bson.E{Key: "refreshToken", Value: refresh})
	}
	return d
}

func newMockT(t *testing.T) *mtest.T {
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

const ns = "test.users"

func TestMongo_FindByID(t *testing.T) {
	mt := newMockT(t)

	mt.Run("found", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, accountBSON(id, "tok")))

		got, err := NewMongoRepository(mt.DB).FindByID(context.Background(), id.Hex())
		require.NoError(mt, err)
		assert.Equal(mt, id.Hex(), got.ID)
		assert.Equal(mt, "alice", got.Username)
		require.NotNil(mt, got.RefreshToken)
		assert.Equal(mt, "tok", *got.RefreshToken)
	})

	mt.Run("not found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := NewMongoRepository(mt.DB).FindByID(context.Background(), primitive.NewObjectID().Hex())
		assert.ErrorIs(mt, err, common.ErrorNotFound)
	})

	mt.Run("malformed id", func(mt *mtest.T) {
		_, err := NewMongoRepository(mt.DB).FindByID(context.Background(), "zzz")
		assert.ErrorIs(mt, err, common.ErrorNotFound)
	})
}

func TestMongo_FindByIdentifier(t *testing.T) {
	mt := newMockT(t)

	mt.Run("by email", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, accountBSON(id, "")))

		got, err := NewMongoRepository(mt.DB).FindByIdentifier(context.Background(), "", "alice@example.com")
		require.NoError(mt, err)
		assert.Nil(mt, got.RefreshToken)
		assert.Empty(mt, got.WatchHistory)
	})

	mt.Run("no identifiers", func(mt *mtest.T) {
		_, err := NewMongoRepository(mt.DB).FindByIdentifier(context.Background(), "", "")
		assert.ErrorIs(mt, err, common.ErrorNotFound)
	})
}

func TestMongo_ExistsByIdentifier(t *testing.T) {
	mt := newMockT(t)

	mt.Run("exists", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(1)}}))

		ok, err := NewMongoRepository(mt.DB).ExistsByIdentifier(context.Background(), "alice", "")
		require.NoError(mt, err)
		assert.True(mt, ok)
	})

	mt.Run("absent", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		ok, err := NewMongoRepository(mt.DB).ExistsByIdentifier(context.Background(), "bob", "bob@example.com")
		require.NoError(mt, err)
		assert.False(mt, ok)
	})
}

func TestMongo_Create(t *testing.T) {
	mt := newMockT(t)

	mt.Run("success", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		repo := NewMongoRepository(mt.DB)
		fixed := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
		repo.now = func() time.Time { return fixed }

		got, err := repo.Create(context.Background(), newAccount())
		require.NoError(mt, err)
		assert.Len(mt, got.ID, 24)
		assert.Equal(mt, fixed, got.CreatedAt)
		assert.Nil(mt, got.RefreshToken)
	})

	mt.Run("duplicate key", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error",
		}))

		_, err := NewMongoRepository(mt.DB).Create(context.Background(), newAccount())
		assert.ErrorIs(mt, err, common.ErrDuplicateIdentifier)
	})

	mt.Run("other error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Message: "bad value",
		}))

		_, err := NewMongoRepository(mt.DB).Create(context.Background(), newAccount())
		require.Error(mt, err)
		assert.Contains(mt, err.Error(), "db error")
	})
}

func TestMongo_SwapRefreshToken(t *testing.T) {
	mt := newMockT(t)

	mt.Run("matched", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		ok, err := NewMongoRepository(mt.DB).SwapRefreshToken(context.Background(), primitive.NewObjectID().Hex(), "old", "new")
		require.NoError(mt, err)
		assert.True(mt, ok)
	})

	mt.Run("stale token", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		ok, err := NewMongoRepository(mt.DB).SwapRefreshToken(context.Background(), primitive.NewObjectID().Hex(), "old", "new")
		require.NoError(mt, err)
		assert.False(mt, ok)
	})
}

func TestMongo_SetRefreshTokenAndPassword(t *testing.T) {
	mt := newMockT(t)

	mt.Run("set and clear", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
		)

		repo := NewMongoRepository(mt.DB)
		id := primitive.NewObjectID().Hex()
		token := "tok"
		require.NoError(mt, repo.SetRefreshToken(context.Background(), id, &token))
		require.NoError(mt, repo.SetRefreshToken(context.Background(), id, nil))
	})

	mt.Run("unknown account", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))

		err := NewMongoRepository(mt.DB).UpdatePasswordHash(context.Background(), primitive.NewObjectID().Hex(), "h")
		assert.ErrorIs(mt, err, common.ErrorNotFound)
	})
}

func TestMongo_UpdateDetails(t *testing.T) {
	mt := newMockT(t)

	mt.Run("returns updated document", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(bson.D{
			{Key: "ok", Value: 1},
			{Key: "value", Value: accountBSON(id, "")},
		})

		got, err := NewMongoRepository(mt.DB).UpdateDetails(context.Background(), id.Hex(), "Alice A", "alice@example.com")
		require.NoError(mt, err)
		assert.Equal(mt, id.Hex(), got.ID)
	})

	mt.Run("email taken", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    11000,
			Message: "E11000 duplicate key error",
		}))

		_, err := NewMongoRepository(mt.DB).UpdateDetails(context.Background(), primitive.NewObjectID().Hex(), "A", "taken@example.com")
		assert.True(mt, errors.Is(err, common.ErrDuplicateIdentifier), "got %v", err)
	})

	mt.Run("unknown account", func(mt *mtest.T) {
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: nil}})

		_, err := NewMongoRepository(mt.DB).SetCoverImage(context.Background(), primitive.NewObjectID().Hex(), "u")
		assert.ErrorIs(mt, err, common.ErrorNotFound)
	})
}
