package services

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/tubeaccounts/internal/client/client"
	"github.com/dmitrijs2005/tubeaccounts/internal/client/models"
	"github.com/dmitrijs2005/tubeaccounts/internal/common"
)

// AccountService covers the profile commands of a logged-in user.
type AccountService interface {
	Current(ctx context.Context) (*models.Account, error)
	Update(ctx context.Context, fullName, email string) (*models.Account, error)
	SetAvatar(ctx context.Context, path string) (*models.Account, error)
	SetCoverImage(ctx context.Context, path string) (*models.Account, error)
	Channel(ctx context.Context, username string) (*models.Channel, error)
	History(ctx context.Context) ([]models.HistoryItem, error)
}

type accountService struct {
	client client.Client
}

func NewAccountService(c client.Client) AccountService {
	return &accountService{client: c}
}

func (s *accountService) Current(ctx context.Context) (*models.Account, error) {
	return s.client.CurrentUser(ctx)
}

func (s *accountService) Update(ctx context.Context, fullName, email string) (*models.Account, error) {
	if common.IsBlank(fullName, email) {
		return nil, invalid("fullname and email are required")
	}
	return s.client.UpdateAccount(ctx, strings.TrimSpace(fullName), strings.TrimSpace(email))
}

func (s *accountService) SetAvatar(ctx context.Context, path string) (*models.Account, error) {
	path = strings.TrimSpace(path)
	if err := checkFile(path); err != nil {
		return nil, err
	}
	return s.client.UpdateAvatar(ctx, path)
}

func (s *accountService) SetCoverImage(ctx context.Context, path string) (*models.Account, error) {
	path = strings.TrimSpace(path)
	if err := checkFile(path); err != nil {
		return nil, err
	}
	return s.client.UpdateCoverImage(ctx, path)
}

func (s *accountService) Channel(ctx context.Context, username string) (*models.Channel, error) {
	username = common.NormalizeIdentifier(username)
	if username == "" {
		return nil, invalid("username is required")
	}
	return s.client.Channel(ctx, username)
}

func (s *accountService) History(ctx context.Context) ([]models.HistoryItem, error) {
	return s.client.History(ctx)
}
