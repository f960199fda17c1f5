// Package model defines domain entities for the application.
package model

import "time"

// User represents a registered account that can own uploaded images.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity is the verified caller identity injected by the auth middleware.
type Identity struct {
	UserID   string
	Username string
}
