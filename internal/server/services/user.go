// Package services contains server-side business logic. This file implements
// UserService: registration, login, token refresh and revocation, password
// change and profile mutation.
//
// Session state per account is one stored refresh token: absent means
// logged out; present means the holder of exactly that token may refresh.
package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/tubeaccounts/internal/common"
	"github.com/dmitrijs2005/tubeaccounts/internal/logging"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/auth"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/blobstore"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/credentials"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/metrics"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/models"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/repositories/profiles"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type RegisterInput struct {
	Username       string
	Email          string
	FullName       string
	Password       string
	AvatarPath     string
	CoverImagePath string
}

// LoginInput identifies the account by username or email.
type LoginInput struct {
	Username string
	Email    string
	Password string
}

type LoginResult struct {
	User *models.AccountView
	TokenPair
}

type ChangePasswordInput struct {
	OldPassword     string
	NewPassword     string
	ConfirmPassword string
}

type UserService struct {
	store    *credentials.Store
	issuer   *auth.Issuer
	profiles profiles.Repository
	uploader blobstore.Uploader
	logger   logging.Logger
}

func NewUserService(store *credentials.Store, issuer *auth.Issuer, p profiles.Repository,
	uploader blobstore.Uploader, logger logging.Logger) *UserService {
	return &UserService{
		store:    store,
		issuer:   issuer,
		profiles: p,
		uploader: uploader,
		logger:   logger.With("module", "users"),
	}
}

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", common.ErrValidation, msg)
}

// record counts the outcome of operation; client-caused failures are
// "rejected", anything else "error".
func record(operation string, err error) {
	switch {
	case err == nil:
		metrics.RecordAuthOperation(operation, metrics.OutcomeSuccess)
	case errors.Is(err, common.ErrValidation),
		errors.Is(err, common.ErrDuplicateIdentifier),
		errors.Is(err, common.ErrInvalidCredentials),
		errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrSessionExpiredOrReused),
		errors.Is(err, common.ErrUploadFailed):
		metrics.RecordAuthOperation(operation, metrics.OutcomeRejected)
	default:
		metrics.RecordAuthOperation(operation, metrics.OutcomeError)
	}
}

// Register creates an account. Uniqueness is checked before any upload; the
// avatar is mandatory while a failed cover upload only leaves the cover empty.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (view *models.AccountView, err error) {
	defer func() { record("register", err) }()

	if common.IsBlank(in.Username, in.Email, in.FullName, in.Password) {
		return nil, validationError("all fields are required")
	}
	if in.AvatarPath == "" {
		return nil, validationError("avatar file is required")
	}

	exists, err := s.store.Exists(ctx, in.Username, in.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, common.ErrDuplicateIdentifier
	}

	avatarURL, err := s.uploader.Upload(ctx, in.AvatarPath)
	if err != nil {
		s.logger.Warn(ctx, "avatar upload failed", "error", err)
		return nil, fmt.Errorf("%w: avatar", common.ErrUploadFailed)
	}

	var coverURL string
	if in.CoverImagePath != "" {
		coverURL, err = s.uploader.Upload(ctx, in.CoverImagePath)
		if err != nil {
			s.logger.Warn(ctx, "cover image upload failed, continuing without it", "error", err)
			coverURL = ""
		}
	}

	created, err := s.store.Create(ctx, credentials.CreateInput{
		Username:      in.Username,
		Email:         in.Email,
		FullName:      in.FullName,
		Password:      in.Password,
		AvatarURL:     avatarURL,
		CoverImageURL: coverURL,
	})
	if err != nil {
		return nil, err
	}

	a, err := s.store.FindByID(ctx, created.ID)
	if err != nil {
		s.logger.Error(ctx, "registered account not readable", "id", created.ID, "error", err)
		return nil, common.ErrorInternal
	}

	s.logger.Info(ctx, "account registered", "id", a.ID, "username", a.Username)
	return s.store.ProjectPublic(a), nil
}

func (s *UserService) issuePair(a *models.Account) (*TokenPair, error) {
	access, err := s.issuer.IssueAccess(a)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.issuer.IssueRefresh(a.ID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Login verifies credentials and starts a new session, replacing any
// previous refresh token. Unknown accounts and wrong passwords are
// indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, in LoginInput) (res *LoginResult, err error) {
	defer func() { record("login", err) }()

	if common.IsBlank(in.Username) && common.IsBlank(in.Email) {
		return nil, validationError("username or email is required")
	}

	a, err := s.store.FindByIdentifier(ctx, in.Username, in.Email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.store.VerifyPassword(a, in.Password) {
		return nil, common.ErrInvalidCredentials
	}

	pair, err := s.issuePair(a)
	if err != nil {
		return nil, err
	}

	if err := s.store.SetRefreshToken(ctx, a.ID, &pair.RefreshToken); err != nil {
		return nil, err
	}

	return &LoginResult{User: s.store.ProjectPublic(a), TokenPair: *pair}, nil
}

// Logout clears the stored refresh token. It is idempotent and an unknown
// account is not an error.
func (s *UserService) Logout(ctx context.Context, accountID string) (err error) {
	defer func() { record("logout", err) }()

	err = s.store.SetRefreshToken(ctx, accountID, nil)
	if errors.Is(err, common.ErrorNotFound) {
		return nil
	}
	return err
}

// RefreshSession exchanges a refresh token for a new pair. The presented
// token must equal the stored one; the stored token is replaced with a
// conditional write so that only one of several concurrent refreshes with
// the same token succeeds. Failed attempts leave the stored token unchanged.
func (s *UserService) RefreshSession(ctx context.Context, token string) (pair *TokenPair, err error) {
	defer func() { record("refresh", err) }()

	if strings.TrimSpace(token) == "" {
		return nil, common.ErrorUnauthorized
	}

	claims, err := s.issuer.Verify(token, auth.Refresh)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorUnauthorized, err)
	}

	a, err := s.store.FindByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}

	if a.RefreshToken == nil || subtle.ConstantTimeCompare([]byte(*a.RefreshToken), []byte(token)) != 1 {
		s.logger.Warn(ctx, "refresh token mismatch", "id", a.ID)
		return nil, common.ErrSessionExpiredOrReused
	}

	pair, err = s.issuePair(a)
	if err != nil {
		return nil, err
	}

	swapped, err := s.store.RotateRefreshToken(ctx, a.ID, token, pair.RefreshToken)
	if err != nil {
		return nil, err
	}
	if !swapped {
		return nil, common.ErrSessionExpiredOrReused
	}
	return pair, nil
}

// ChangePassword replaces the password after checking the old one. The
// current session's refresh token is revoked.
func (s *UserService) ChangePassword(ctx context.Context, accountID string, in ChangePasswordInput) (err error) {
	defer func() { record("change_password", err) }()

	if in.NewPassword != in.ConfirmPassword {
		return validationError("new password and confirmation do not match")
	}
	if common.IsBlank(in.NewPassword) {
		return validationError("new password is required")
	}

	a, err := s.store.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorUnauthorized
		}
		return err
	}

	if !s.store.VerifyPassword(a, in.OldPassword) {
		return common.ErrInvalidCredentials
	}

	return s.store.SetPassword(ctx, a.ID, in.NewPassword)
}

// UpdateProfile changes the full name and email.
func (s *UserService) UpdateProfile(ctx context.Context, accountID, fullName, email string) (view *models.AccountView, err error) {
	defer func() { record("update_profile", err) }()

	if common.IsBlank(fullName, email) {
		return nil, validationError("fullname and email are required")
	}

	a, err := s.store.UpdateDetails(ctx, accountID, fullName, email)
	if err != nil {
		return nil, err
	}
	return s.store.ProjectPublic(a), nil
}

func (s *UserService) CurrentAccount(ctx context.Context, accountID string) (*models.AccountView, error) {
	a, err := s.store.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.store.ProjectPublic(a), nil
}

func (s *UserService) replaceImage(ctx context.Context, localPath, what string,
	set func(ctx context.Context, id, url string) (*models.Account, error), accountID string) (*models.AccountView, error) {
	if localPath == "" {
		return nil, validationError(what + " file is missing")
	}

	url, err := s.uploader.Upload(ctx, localPath)
	if err != nil {
		s.logger.Warn(ctx, what+" upload failed", "id", accountID, "error", err)
		return nil, fmt.Errorf("%w: %s", common.ErrUploadFailed, what)
	}

	a, err := set(ctx, accountID, url)
	if err != nil {
		return nil, err
	}
	return s.store.ProjectPublic(a), nil
}

func (s *UserService) UpdateAvatar(ctx context.Context, accountID, localPath string) (view *models.AccountView, err error) {
	defer func() { record("update_avatar", err) }()
	return s.replaceImage(ctx, localPath, "avatar", s.store.SetAvatar, accountID)
}

func (s *UserService) UpdateCoverImage(ctx context.Context, accountID, localPath string) (view *models.AccountView, err error) {
	defer func() { record("update_cover_image", err) }()
	return s.replaceImage(ctx, localPath, "cover image", s.store.SetCoverImage, accountID)
}

// ChannelProfile returns the public channel page of username as seen by viewerID.
func (s *UserService) ChannelProfile(ctx context.Context, username, viewerID string) (*models.ChannelProfile, error) {
	username = common.NormalizeIdentifier(username)
	if username == "" {
		return nil, validationError("username is missing")
	}
	return s.profiles.ChannelProfile(ctx, username, viewerID)
}

func (s *UserService) WatchHistory(ctx context.Context, accountID string) ([]models.WatchHistoryItem, error) {
	return s.profiles.WatchHistory(ctx, accountID)
}
