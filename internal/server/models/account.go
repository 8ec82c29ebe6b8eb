// Package models defines the server-side records persisted in the document
// store and the views returned to callers.
package models

import "time"

// Account is the persisted user identity record.
type Account struct {
	ID            string
	Username      string
	Email         string
	FullName      string
	PasswordHash  string
	AvatarURL     string
	CoverImageURL string
	// RefreshToken is the single live session; nil when logged out.
	RefreshToken *string
	WatchHistory []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewAccount carries the already-normalised fields of an account to insert.
type NewAccount struct {
	Username      string
	Email         string
	FullName      string
	PasswordHash  string
	AvatarURL     string
	CoverImageURL string
}

// AccountView is an Account without its password hash and refresh token.
type AccountView struct {
	ID            string    `json:"_id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullname"`
	AvatarURL     string    `json:"avatar"`
	CoverImageURL string    `json:"coverImage"`
	WatchHistory  []string  `json:"watchHistory"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// View projects the public fields of a.
func (a *Account) View() *AccountView {
	history := a.WatchHistory
	if history == nil {
		history = []string{}
	}
	return &AccountView{
		ID:            a.ID,
		Username:      a.Username,
		Email:         a.Email,
		FullName:      a.FullName,
		AvatarURL:     a.AvatarURL,
		CoverImageURL: a.CoverImageURL,
		WatchHistory:  history,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}
