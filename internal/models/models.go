package models

import (
	"errors"
	"time"
)

// LoggerState is the persisted configuration of the local-filesystem logger.
type LoggerState struct {
	Directory *string  `json:"directory"`
	Friends   []string `json:"friends"`
	Enabled   bool     `json:"enabled"`
}

// Clone returns a deep copy so callers cannot mutate shared state.
func (s LoggerState) Clone() LoggerState {
	out := LoggerState{Enabled: s.Enabled, Friends: append([]string{}, s.Friends...)}
	if s.Directory != nil {
		dir := *s.Directory
		out.Directory = &dir
	}
	return out
}

// Monitors reports whether the username is in the monitored friend list.
func (s LoggerState) Monitors(username string) bool {
	for _, friend := range s.Friends {
		if friend == username {
			return true
		}
	}
	return false
}

// Feed is a snapshot of the friends feed returned by the upstream service.
type Feed struct {
	UserPosts    *PostOverview  `json:"userPosts"`
	FriendsPosts []PostOverview `json:"friendsPosts"`
}

// PostOverview groups the posts of one author.
type PostOverview struct {
	User  FeedUser `json:"user"`
	Posts []Post   `json:"posts"`
}

// FeedUser identifies the author of a post overview.
type FeedUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Media references one remote image of a post.
type Media struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Location is an optional geographic position attached to a post.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Post is a single moment capture made of a primary and a secondary image.
type Post struct {
	ID           string    `json:"id"`
	MomentID     string    `json:"momentId,omitempty"`
	Primary      Media     `json:"primary"`
	Secondary    Media     `json:"secondary"`
	CreationDate string    `json:"creationDate,omitempty"`
	CreatedAt    string    `json:"createdAt,omitempty"`
	PostedAt     string    `json:"postedAt,omitempty"`
	TakenAt      string    `json:"takenAt,omitempty"`
	Caption      string    `json:"caption,omitempty"`
	Location     *Location `json:"location,omitempty"`
}

// ErrMissingTimestamp indicates a post carries no usable creation timestamp.
var ErrMissingTimestamp = errors.New("post has no creation timestamp")

// Timestamp returns the creation time of the post using the first populated
// field among creationDate, createdAt and postedAt.
func (p Post) Timestamp() (time.Time, error) {
	for _, raw := range []string{p.CreationDate, p.CreatedAt, p.PostedAt} {
		if raw == "" {
			continue
		}
		return time.Parse(time.RFC3339, raw)
	}
	return time.Time{}, ErrMissingTimestamp
}

// SavedPostInfo describes a post found on disk by the directory scanner.
type SavedPostInfo struct {
	Username      string `json:"username"`
	Date          string `json:"date"`
	PrimaryPath   string `json:"primaryPath"`
	SecondaryPath string `json:"secondaryPath"`
}

// LoggerSettings is the backend-owned configuration of the delegated logger.
type LoggerSettings struct {
	SaveDirectory   string   `json:"save_directory"`
	SelectedFriends []string `json:"selected_friends"`
	AutoSaveEnabled bool     `json:"auto_save_enabled"`
}

// Selects reports whether the user id is selected for auto-saving.
func (s LoggerSettings) Selects(userID string) bool {
	for _, id := range s.SelectedFriends {
		if id == userID {
			return true
		}
	}
	return false
}

// SavedPost is a post archived by the backend.
type SavedPost struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"user_id"`
	Username           string    `json:"username"`
	MomentID           string    `json:"moment_id"`
	PrimaryImagePath   string    `json:"primary_image_path"`
	SecondaryImagePath string    `json:"secondary_image_path"`
	Caption            *string   `json:"caption,omitempty"`
	TakenAt            string    `json:"taken_at"`
	SavedAt            string    `json:"saved_at"`
	Location           *Location `json:"location,omitempty"`
}

// SavePostRequest carries the arguments of the save post command.
type SavePostRequest struct {
	UserID            string    `json:"user_id" validate:"required"`
	Username          string    `json:"username" validate:"required"`
	MomentID          string    `json:"moment_id" validate:"required"`
	PrimaryImageURL   string    `json:"primary_image_url" validate:"required,url"`
	SecondaryImageURL string    `json:"secondary_image_url" validate:"required,url"`
	Caption           *string   `json:"caption,omitempty"`
	TakenAt           string    `json:"taken_at,omitempty"`
	Location          *Location `json:"location,omitempty"`
}

// BalancesSettings configures the balances download feature.
type BalancesSettings struct {
	Folder    string   `json:"folder"`
	PeopleIDs []string `json:"peopleIds" validate:"dive,required"`
}
