package entity

import "time"

// Notification is an in-app message for a single user.
type Notification struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	Type        string    `json:"notification_type"`
	IsRead      bool      `json:"is_read"`
	RelatedPRID *int64    `json:"related_pr_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
