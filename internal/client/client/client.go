package client

import (
	"context"

	"github.com/dmitrijs2005/tubeaccounts/internal/client/models"
)

type Client interface {
	Close() error
	Ping(ctx context.Context) error
	Register(ctx context.Context, form models.RegisterForm) (*models.Account, error)
	Login(ctx context.Context, username, email string, password []byte) (*models.Account, error)
	Logout(ctx context.Context) error
	Refresh(ctx context.Context) error
	ChangePassword(ctx context.Context, oldPassword, newPassword, confirm []byte) error
	CurrentUser(ctx context.Context) (*models.Account, error)
	UpdateAccount(ctx context.Context, fullName, email string) (*models.Account, error)
	UpdateAvatar(ctx context.Context, path string) (*models.Account, error)
	UpdateCoverImage(ctx context.Context, path string) (*models.Account, error)
	Channel(ctx context.Context, username string) (*models.Channel, error)
	History(ctx context.Context) ([]models.HistoryItem, error)
}
