package models

import "time"

// Post is a published content item tagged with a topic. The id is
// caller-supplied and unique; posts live in the search cluster, not MySQL.
type Post struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Topic       string    `json:"topic"`
	Description string    `json:"description"`
	Author      string    `json:"author"`
	DateCreated time.Time `json:"dateCreated"`
	Image       string    `json:"image,omitempty"` // URL of the optional uploaded asset
}
