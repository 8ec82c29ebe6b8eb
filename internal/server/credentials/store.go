// Package credentials owns the persisted Account record. It is the only
// place where passwords are hashed, so a digest is recomputed on every
// password write and never on any other update.
//
// Writes run under context.WithoutCancel: a client that disconnects midway
// does not abort a store write that has already been started.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/tubeaccounts/internal/common"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/models"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/password"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/repositories/accounts"
)

// CreateInput is a new account with its plaintext password.
type CreateInput struct {
	Username      string
	Email         string
	FullName      string
	Password      string
	AvatarURL     string
	CoverImageURL string
}

type Store struct {
	repo   accounts.Repository
	hasher password.Hasher
}

func NewStore(repo accounts.Repository, hasher password.Hasher) *Store {
	return &Store{repo: repo, hasher: hasher}
}

// FindByIdentifier looks an account up by username or email. At least one
// must be non-blank.
func (s *Store) FindByIdentifier(ctx context.Context, username, email string) (*models.Account, error) {
	username = common.NormalizeIdentifier(username)
	email = common.NormalizeIdentifier(email)
	if username == "" && email == "" {
		return nil, fmt.Errorf("%w: username or email is required", common.ErrValidation)
	}
	return s.repo.FindByIdentifier(ctx, username, email)
}

func (s *Store) FindByID(ctx context.Context, id string) (*models.Account, error) {
	return s.repo.FindByID(ctx, id)
}

// Exists reports whether the username or the email is already taken.
func (s *Store) Exists(ctx context.Context, username, email string) (bool, error) {
	return s.repo.ExistsByIdentifier(ctx,
		common.NormalizeIdentifier(username), common.NormalizeIdentifier(email))
}

// Create normalises identifiers, rejects taken ones, hashes the password and
// inserts the account.
func (s *Store) Create(ctx context.Context, in CreateInput) (*models.Account, error) {
	ctx = context.WithoutCancel(ctx)

	username := common.NormalizeIdentifier(in.Username)
	email := common.NormalizeIdentifier(in.Email)

	exists, err := s.repo.ExistsByIdentifier(ctx, username, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, common.ErrDuplicateIdentifier
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	return s.repo.Create(ctx, &models.NewAccount{
		Username:      username,
		Email:         email,
		FullName:      strings.TrimSpace(in.FullName),
		PasswordHash:  digest,
		AvatarURL:     in.AvatarURL,
		CoverImageURL: in.CoverImageURL,
	})
}

// VerifyPassword checks plaintext against the stored digest of a.
func (s *Store) VerifyPassword(a *models.Account, plaintext string) bool {
	return s.hasher.Verify(plaintext, a.PasswordHash)
}

// SetRefreshToken persists token (nil clears it) without touching other fields.
func (s *Store) SetRefreshToken(ctx context.Context, id string, token *string) error {
	return s.repo.SetRefreshToken(context.WithoutCancel(ctx), id, token)
}

// RotateRefreshToken replaces expected with next in a single conditional
// write. It reports false when the stored token no longer equals expected.
func (s *Store) RotateRefreshToken(ctx context.Context, id, expected, next string) (bool, error) {
	return s.repo.SwapRefreshToken(context.WithoutCancel(ctx), id, expected, next)
}

// SetPassword hashes plaintext and stores the digest. The stored refresh
// token is cleared in the same write.
func (s *Store) SetPassword(ctx context.Context, id, plaintext string) error {
	digest, err := s.hasher.Hash(plaintext)
	if err != nil {
		return err
	}
	return s.repo.UpdatePasswordHash(context.WithoutCancel(ctx), id, digest)
}

// UpdateDetails changes the display name and email. An email that belongs
// to a different account is rejected.
func (s *Store) UpdateDetails(ctx context.Context, id, fullName, email string) (*models.Account, error) {
	ctx = context.WithoutCancel(ctx)
	email = common.NormalizeIdentifier(email)

	other, err := s.repo.FindByIdentifier(ctx, "", email)
	switch {
	case err == nil && other.ID != id:
		return nil, common.ErrDuplicateIdentifier
	case err != nil && !errors.Is(err, common.ErrorNotFound):
		return nil, err
	}

	return s.repo.UpdateDetails(ctx, id, strings.TrimSpace(fullName), email)
}

func (s *Store) SetAvatar(ctx context.Context, id, url string) (*models.Account, error) {
	return s.repo.SetAvatar(context.WithoutCancel(ctx), id, url)
}

func (s *Store) SetCoverImage(ctx context.Context, id, url string) (*models.Account, error) {
	return s.repo.SetCoverImage(context.WithoutCancel(ctx), id, url)
}

// ProjectPublic strips the password digest and refresh token.
func (s *Store) ProjectPublic(a *models.Account) *models.AccountView {
	return a.View()
}
