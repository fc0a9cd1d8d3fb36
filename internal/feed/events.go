package feed

import "time"

// ReviewEvent is broadcast to feed subscribers after a review mutation.
type ReviewEvent struct {
	Type     string    `json:"type"` // "review.created", "review.updated" or "review.deleted"
	ReviewID string    `json:"review_id"`
	BookID   string    `json:"book_id"`
	UserID   string    `json:"user_id"`
	Rating   int       `json:"rating,omitempty"`
	At       time.Time `json:"at"`
}
