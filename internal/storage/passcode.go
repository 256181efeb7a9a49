package storage

import (
	"fmt"
	"time"

	"otp_auth/internal/auth"
	"otp_auth/internal/models"

	"github.com/gofrs/uuid"
)

func newPasscode(email, code string, createdAt time.Time) (models.Passcode, error) {
	const op = "storage.newPasscode"

	id, err := uuid.NewV4()
	if err != nil {
		return models.Passcode{}, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := auth.HashPasscode(code)
	if err != nil {
		return models.Passcode{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.Passcode{
		ID:        id,
		Email:     email,
		CodeHash:  hash,
		CreatedAt: createdAt.UTC(),
		Used:      false,
	}, nil
}

// matchPasscode returns the first candidate whose hash matches code.
// Candidates are expected newest first.
func matchPasscode(candidates []models.Passcode, code string) (models.Passcode, bool) {
	for _, p := range candidates {
		if auth.CheckPasscode(code, p.CodeHash) {
			return p, true
		}
	}
	return models.Passcode{}, false
}
