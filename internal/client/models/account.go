// Package models holds the client-side views returned by the account server.
package models

import "time"

type Account struct {
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

type Channel struct {
	ID                        string `json:"_id"`
	Username                  string `json:"username"`
	Email                     string `json:"email"`
	FullName                  string `json:"fullname"`
	AvatarURL                 string `json:"avatar"`
	CoverImageURL             string `json:"coverImage"`
	SubscribersCount          int64  `json:"subscribersCount"`
	ChannelsSubscribedToCount int64  `json:"channelsSubscribedToCount"`
	IsSubscribed              bool   `json:"isSubscribed"`
}

type VideoOwner struct {
	ID        string `json:"_id"`
	Username  string `json:"username"`
	FullName  string `json:"fullname"`
	AvatarURL string `json:"avatar"`
}

type HistoryItem struct {
	ID          string     `json:"_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	VideoFile   string     `json:"videoFile"`
	Thumbnail   string     `json:"thumbnail"`
	Duration    float64    `json:"duration"`
	Views       int64      `json:"views"`
	Owner       VideoOwner `json:"owner"`
}

// RegisterForm carries registration fields; the image fields are local
// file paths.
type RegisterForm struct {
	Username       string
	Email          string
	FullName       string
	Password       []byte
	AvatarPath     string
	CoverImagePath string
}
