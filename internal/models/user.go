package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a platform user. Users sign in with an email code or OAuth; there is no password.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
