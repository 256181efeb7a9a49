package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"otp_auth/internal/auth"
	"otp_auth/internal/models"
	"otp_auth/internal/notify"
	"otp_auth/internal/storage"
)

const defaultPasscodeTTL = 5 * time.Minute

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("account already exists")
	ErrNotFound          = errors.New("account not found")
	ErrInvalidCredential = errors.New("invalid passcode")
	ErrExpired           = errors.New("passcode expired")
	ErrUnauthorized      = errors.New("unauthorized")
)

// Service is the email + passcode login workflow. The per-email state
// (registered, passcode issued, authenticated) is derived from stored rows.
type Service interface {
	Register(ctx context.Context, email string) (models.Account, error)
	RequestCode(ctx context.Context, email string) error
	VerifyCode(ctx context.Context, email, code string) (string, error)
	GetProfile(ctx context.Context, token string) (models.Account, error)
}

type Config struct {
	PasscodeTTL time.Duration
}

type Option func(*service)

func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// WithPasscodeGenerator replaces the random passcode source.
func WithPasscodeGenerator(gen func() (string, error)) Option {
	return func(s *service) {
		s.generate = gen
	}
}

type service struct {
	storage  storage.Storage
	tokens   *auth.TokenManager
	notifier notify.Notifier
	log      *slog.Logger

	passcodeTTL time.Duration
	now         func() time.Time
	generate    func() (string, error)
}

func NewService(cfg Config, st storage.Storage, tokens *auth.TokenManager, notifier notify.Notifier, lgr *slog.Logger, opts ...Option) *service {
	s := &service{
		storage:     st,
		tokens:      tokens,
		notifier:    notifier,
		log:         lgr,
		passcodeTTL: cfg.PasscodeTTL,
		now:         time.Now,
		generate:    auth.GeneratePasscode,
	}
	if s.passcodeTTL <= 0 {
		s.passcodeTTL = defaultPasscodeTTL
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *service) Register(ctx context.Context, email string) (models.Account, error) {
	const op = "service.Register"

	email = NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return models.Account{}, fmt.Errorf("%s: %w", op, ErrInvalidInput)
	}

	_, err := s.storage.FindAccountByEmail(ctx, email)
	if err == nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, ErrConflict)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	account, err := s.storage.CreateAccount(ctx, email, s.now())
	if errors.Is(err, storage.ErrConflict) {
		return models.Account{}, fmt.Errorf("%s: %w", op, ErrConflict)
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("account registered", slog.String("op", op), slog.Any("account_id", account.ID))

	return account, nil
}

// RequestCode issues a fresh passcode for a registered email. Any earlier
// unused passcode for the same email stops being accepted.
func (s *service) RequestCode(ctx context.Context, email string) error {
	const op = "service.RequestCode"

	email = NormalizeEmail(email)

	_, err := s.storage.FindAccountByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	code, err := s.generate()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.InvalidateActivePasscodes(ctx, email); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.storage.CreatePasscode(ctx, email, code, s.now()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.notifier.Deliver(ctx, email, code); err != nil {
		s.log.Warn("failed to deliver passcode", slog.String("op", op), slog.Any("error", err))
	}

	return nil
}

// VerifyCode consumes a valid passcode and returns a session token.
// An expired passcode is left untouched; it keeps failing the age check.
func (s *service) VerifyCode(ctx context.Context, email, code string) (string, error) {
	const op = "service.VerifyCode"

	email = NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidInput)
	}

	passcode, err := s.storage.FindActivePasscode(ctx, email, code)
	if errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidCredential)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if s.now().Sub(passcode.CreatedAt) > s.passcodeTTL {
		return "", fmt.Errorf("%s: %w", op, ErrExpired)
	}

	err = s.storage.MarkPasscodeUsed(ctx, passcode.ID)
	if errors.Is(err, storage.ErrNotFound) {
		// Lost the race against a concurrent verify of the same code.
		return "", fmt.Errorf("%s: %w", op, ErrInvalidCredential)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	token, err := s.tokens.Issue(email)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return token, nil
}

func (s *service) GetProfile(ctx context.Context, token string) (models.Account, error) {
	const op = "service.GetProfile"

	if token == "" {
		return models.Account{}, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	email, err := s.tokens.Verify(token)
	if err != nil {
		return models.Account{}, fmt.Errorf("%s: %w: %w", op, ErrUnauthorized, err)
	}

	account, err := s.storage.FindAccountByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Account{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return account, nil
}
