package models

import "time"

type Review struct {
	ID        string    `json:"id"`
	BookID    string    `json:"book_id"`
	UserID    string    `json:"user_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReviewWithUser is a review joined with the reviewing user's username,
// used on the book detail page.
type ReviewWithUser struct {
	Review
	Username string `json:"username"`
}
