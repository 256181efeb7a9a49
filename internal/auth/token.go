package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the shortest signing secret NewTokenManager accepts.
const MinSecretLength = 32

var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
	ErrNoBearerToken  = errors.New("no bearer token")
	ErrWeakSecret     = errors.New("signing secret too short")
)

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 session tokens. It holds no state
// beyond the secret, so any instance sharing the secret can verify a token.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type TokenOption func(*TokenManager)

// WithTokenClock overrides the clock used for iat/exp and for validation.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(m *TokenManager) {
		m.now = now
	}
}

func NewTokenManager(secret string, ttl time.Duration, opts ...TokenOption) (*TokenManager, error) {
	const op = "auth.NewTokenManager"

	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%s: %w: need at least %d bytes", op, ErrWeakSecret, MinSecretLength)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%s: ttl must be positive", op)
	}

	m := &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

func (m *TokenManager) Issue(email string) (string, error) {
	const op = "auth.TokenManager.Issue"

	issuedAt := m.now()
	claims := &Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(m.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// Verify checks the signature and expiry of token and returns the embedded email.
func (m *TokenManager) Verify(token string) (string, error) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}

	if !parsed.Valid || claims.Email == "" {
		return "", ErrTokenMalformed
	}

	return claims.Email, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header value.
// Whatever follows the single space is returned untrimmed, so stray whitespace
// is left for Verify to reject.
func BearerToken(header string) (string, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", ErrNoBearerToken
	}

	return parts[1], nil
}
