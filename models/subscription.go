package models

import "time"

// Subscription is a durable (username, topic) interest pair. It drives
// notification generation and survives restarts; the registry reloads all
// rows at boot.
type Subscription struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"size:64;not null;uniqueIndex:idx_user_topic" json:"username"`
	Topic     string    `gorm:"size:128;not null;uniqueIndex:idx_user_topic" json:"topic"`
	CreatedAt time.Time `json:"created_at"`
}
