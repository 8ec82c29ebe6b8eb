package models

// ChannelProfile is the public page of an account, with subscription counts
// computed relative to the viewer.
type ChannelProfile struct {
	ID                        string `json:"_id"`
	Username                  string `json:"username"`
	FullName                  string `json:"fullname"`
	Email                     string `json:"email"`
	AvatarURL                 string `json:"avatar"`
	CoverImageURL             string `json:"coverImage"`
	SubscribersCount          int64  `json:"subscribersCount"`
	ChannelsSubscribedToCount int64  `json:"channelsSubscribedToCount"`
	IsSubscribed              bool   `json:"isSubscribed"`
}

// VideoOwner is the short form of the account that uploaded a video.
type VideoOwner struct {
	ID        string `json:"_id"`
	Username  string `json:"username"`
	FullName  string `json:"fullname"`
	AvatarURL string `json:"avatar"`
}

// WatchHistoryItem is one watched video joined with its owner.
type WatchHistoryItem struct {
	ID          string     `json:"_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	VideoFile   string     `json:"videoFile"`
	Thumbnail   string     `json:"thumbnail"`
	Duration    float64    `json:"duration"`
	Views       int64      `json:"views"`
	Owner       VideoOwner `json:"owner"`
}
