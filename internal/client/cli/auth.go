package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/tubeaccounts/internal/client/models"
	"github.com/dmitrijs2005/tubeaccounts/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for the account fields and image paths and creates the
// account. It does not log in.
func (a *App) Register(ctx context.Context) error {
	var form models.RegisterForm
	prompts := []struct {
		text string
		dst  *string
	}{
		{"Enter username", &form.Username},
		{"Enter email", &form.Email},
		{"Enter full name", &form.FullName},
		{"Path to avatar image", &form.AvatarPath},
		{"Path to cover image (optional)", &form.CoverImagePath},
	}
	for _, p := range prompts {
		v, err := getSimpleText(a.reader, p.text, a.out)
		if err != nil {
			return err
		}
		*p.dst = v
	}

	password, err := getPassword("Enter password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)
	form.Password = password

	account, err := a.authService.Register(ctx, form)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Registered %s, you can log in now\n", account.Username)
	return nil
}

// Login prompts for a username or email and a password.
func (a *App) Login(ctx context.Context) error {
	identifier, err := getSimpleText(a.reader, "Enter username or email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword("Enter password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	account, err := a.authService.Login(ctx, identifier, password)
	if err != nil {
		return err
	}

	a.user = account
	a.setMode(ModeOnline)
	fmt.Fprintf(a.out, "Logged in as %s\n", account.Username)
	return nil
}

// Logout ends the session. Local state is cleared even when the server
// call fails.
func (a *App) Logout(ctx context.Context) error {
	a.user = nil
	return a.authService.Logout(ctx)
}

// ChangePassword asks for the old password and the new one twice. The
// server revokes the session, so the user has to log in again.
func (a *App) ChangePassword(ctx context.Context) error {
	oldPassword, err := getPassword("Current password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(oldPassword)

	newPassword, err := getPassword("New password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(newPassword)

	confirm, err := getPassword("Repeat new password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	if err := a.authService.ChangePassword(ctx, oldPassword, newPassword, confirm); err != nil {
		return err
	}

	a.user = nil
	fmt.Fprintln(a.out, "Password changed, please log in again")
	return nil
}
