package models

import (
	"time"

	"github.com/gofrs/uuid"
)

type Account struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Passcode is a one-time login code. Only the bcrypt hash of the code is persisted.
type Passcode struct {
	ID        uuid.UUID
	Email     string
	CodeHash  string
	CreatedAt time.Time
	Used      bool
}
