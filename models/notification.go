package models

import (
	"fmt"
	"time"
)

// Notification is one durable per-user record produced by a publish.
// Entries are append-only; the only mutation ever applied is bulk deletion
// by recipient.
type Notification struct {
	ID        string    `json:"id,omitempty"` // generated on write
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	PostID    string    `json:"postId"`
	Topic     string    `json:"topic"`
	Read      bool      `json:"read"`
}

// NewPostNotification builds the notification recorded for username when
// post is published.
func NewPostNotification(username string, post Post, at time.Time) Notification {
	return Notification{
		Username:  username,
		Message:   fmt.Sprintf("New post in %s posted by %s: %s", post.Topic, post.Author, post.Title),
		Timestamp: at,
		PostID:    post.ID,
		Topic:     post.Topic,
	}
}
