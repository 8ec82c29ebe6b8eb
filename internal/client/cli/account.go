package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dmitrijs2005/tubeaccounts/internal/client/client"
	"github.com/dmitrijs2005/tubeaccounts/internal/client/models"
)

// forgetOnUnauthorized drops the local session when the server no longer
// accepts it.
func (a *App) forgetOnUnauthorized(err error) error {
	if errors.Is(err, client.ErrUnauthorized) || errors.Is(err, client.ErrNotLoggedIn) {
		a.user = nil
	}
	return err
}

func printAccount(w io.Writer, u *models.Account) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "id:\t%s\n", u.ID)
	fmt.Fprintf(tw, "username:\t%s\n", u.Username)
	fmt.Fprintf(tw, "email:\t%s\n", u.Email)
	fmt.Fprintf(tw, "full name:\t%s\n", u.FullName)
	fmt.Fprintf(tw, "avatar:\t%s\n", u.AvatarURL)
	fmt.Fprintf(tw, "cover:\t%s\n", u.CoverImageURL)
	_ = tw.Flush()
}

func (a *App) showAccount(u *models.Account, err error) error {
	if err != nil {
		return a.forgetOnUnauthorized(err)
	}
	a.user = u
	printAccount(a.out, u)
	return nil
}

func (a *App) WhoAmI(ctx context.Context) error {
	return a.showAccount(a.accountService.Current(ctx))
}

func (a *App) UpdateAccount(ctx context.Context) error {
	fullName, err := getSimpleText(a.reader, "Enter full name", a.out)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	return a.showAccount(a.accountService.Update(ctx, fullName, email))
}

func (a *App) SetAvatar(ctx context.Context, path string) error {
	return a.showAccount(a.accountService.SetAvatar(ctx, path))
}

func (a *App) SetCoverImage(ctx context.Context, path string) error {
	return a.showAccount(a.accountService.SetCoverImage(ctx, path))
}

func (a *App) Channel(ctx context.Context, username string) error {
	ch, err := a.accountService.Channel(ctx, username)
	if err != nil {
		return a.forgetOnUnauthorized(err)
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "channel:\t%s (%s)\n", ch.Username, ch.FullName)
	fmt.Fprintf(tw, "subscribers:\t%d\n", ch.SubscribersCount)
	fmt.Fprintf(tw, "subscribed to:\t%d\n", ch.ChannelsSubscribedToCount)
	fmt.Fprintf(tw, "you subscribe:\t%t\n", ch.IsSubscribed)
	return tw.Flush()
}

func (a *App) History(ctx context.Context) error {
	items, err := a.accountService.History(ctx)
	if err != nil {
		return a.forgetOnUnauthorized(err)
	}
	if len(items) == 0 {
		fmt.Fprintln(a.out, "No videos watched yet")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TITLE\tOWNER\tVIEWS")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", it.Title, it.Owner.Username, it.Views)
	}
	return tw.Flush()
}
