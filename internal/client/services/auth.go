// Package services contains application services for the account CLI. They
// validate user input before it reaches the server and keep track of who is
// logged in.
package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dmitrijs2005/tubeaccounts/internal/client/client"
	"github.com/dmitrijs2005/tubeaccounts/internal/client/models"
	"github.com/dmitrijs2005/tubeaccounts/internal/common"
)

var ErrInvalidInput = errors.New("invalid input")

// AuthService defines session operations for the CLI.
type AuthService interface {
	Register(ctx context.Context, form models.RegisterForm) (*models.Account, error)
	Login(ctx context.Context, identifier string, password []byte) (*models.Account, error)
	Logout(ctx context.Context) error
	ChangePassword(ctx context.Context, oldPassword, newPassword, confirm []byte) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type authService struct {
	client client.Client
}

func NewAuthService(c client.Client) AuthService {
	return &authService{client: c}
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

// checkFile requires path to name a readable regular file.
func checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return invalid(err.Error())
	}
	if info.IsDir() {
		return invalid(path + " is a directory")
	}
	return nil
}

func (a *authService) Register(ctx context.Context, form models.RegisterForm) (*models.Account, error) {
	form.Username = strings.TrimSpace(form.Username)
	form.Email = strings.TrimSpace(form.Email)
	form.FullName = strings.TrimSpace(form.FullName)
	form.AvatarPath = strings.TrimSpace(form.AvatarPath)
	form.CoverImagePath = strings.TrimSpace(form.CoverImagePath)

	if common.IsBlank(form.Username, form.Email, form.FullName, string(form.Password)) {
		return nil, invalid("all fields are required")
	}
	if !strings.Contains(form.Email, "@") {
		return nil, invalid("email looks wrong")
	}
	if form.AvatarPath == "" {
		return nil, invalid("avatar file is required")
	}
	if err := checkFile(form.AvatarPath); err != nil {
		return nil, err
	}
	if form.CoverImagePath != "" {
		if err := checkFile(form.CoverImagePath); err != nil {
			return nil, err
		}
	}
	return a.client.Register(ctx, form)
}

// Login accepts a username or an email; anything with an "@" is sent as
// the email.
func (a *authService) Login(ctx context.Context, identifier string, password []byte) (*models.Account, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, invalid("username or email is required")
	}
	if len(password) == 0 {
		return nil, invalid("password is required")
	}

	if strings.Contains(identifier, "@") {
		return a.client.Login(ctx, "", identifier, password)
	}
	return a.client.Login(ctx, identifier, "", password)
}

func (a *authService) Logout(ctx context.Context) error {
	return a.client.Logout(ctx)
}

func (a *authService) ChangePassword(ctx context.Context, oldPassword, newPassword, confirm []byte) error {
	if len(newPassword) == 0 {
		return invalid("new password is required")
	}
	if string(newPassword) != string(confirm) {
		return invalid("new password and confirmation do not match")
	}
	return a.client.ChangePassword(ctx, oldPassword, newPassword, confirm)
}

// Ping proxies a liveness check to the underlying client.
func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

// Close releases resources held by the underlying client.
func (a *authService) Close(ctx context.Context) error {
	return a.client.Close()
}
