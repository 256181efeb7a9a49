package storage

import (
	"context"
	"errors"
	"time"

	"otp_auth/internal/models"

	"github.com/gofrs/uuid"
)

const (
	accountsTable  = "accounts"
	passcodesTable = "passcodes"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

type Storage interface {

	// Accounts
	CreateAccount(ctx context.Context, email string, createdAt time.Time) (models.Account, error)
	FindAccountByEmail(ctx context.Context, email string) (models.Account, error)

	// Passcodes
	InvalidateActivePasscodes(ctx context.Context, email string) error
	CreatePasscode(ctx context.Context, email, code string, createdAt time.Time) (models.Passcode, error)
	FindActivePasscode(ctx context.Context, email, code string) (models.Passcode, error)
	// MarkPasscodeUsed only flips an unused row. ErrNotFound means the row is
	// gone or another caller consumed it first.
	MarkPasscodeUsed(ctx context.Context, passcodeID uuid.UUID) error
	DeleteStalePasscodes(ctx context.Context, before time.Time) (int64, error)

	Close()
}
