package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"otp_auth/internal/models"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jackc/pgx/v4/stdlib"
	"github.com/pressly/goose/v3"
)

const pgUniqueViolation = "23505"

type PostgresStorage struct {
	db *pgxpool.Pool
}

func NewPostgresStorage(ctx context.Context, dbURL string) (*PostgresStorage, error) {
	const op = "storage.NewPostgresStorage"

	conn, err := pgxpool.Connect(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sqlDB := stdlib.OpenDB(*conn.Config().ConnConfig)
	defer sqlDB.Close()

	if err := migrate(ctx, sqlDB, goose.DialectPostgres, "postgres"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &PostgresStorage{
		db: conn,
	}, nil
}

func (p *PostgresStorage) CreateAccount(ctx context.Context, email string, createdAt time.Time) (models.Account, error) {
	const op = "storage.CreateAccount"

	id, err := uuid.NewV4()
	if err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	account := models.Account{ID: id, Email: email, CreatedAt: createdAt.UTC()}
	query := fmt.Sprintf("INSERT INTO %s(id, email, created_at) VALUES ($1, $2, $3);", accountsTable)

	if _, err := p.db.Exec(ctx, query, account.ID, account.Email, account.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return models.Account{}, fmt.Errorf("%s: %w", op, ErrConflict)
		}
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return account, nil
}

func (p *PostgresStorage) FindAccountByEmail(ctx context.Context, email string) (models.Account, error) {
	const op = "storage.FindAccountByEmail"

	var account models.Account
	query := fmt.Sprintf("SELECT id, email, created_at FROM %s WHERE email=$1;", accountsTable)

	err := p.db.QueryRow(ctx, query, email).Scan(&account.ID, &account.Email, &account.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Account{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return account, nil
}

func (p *PostgresStorage) InvalidateActivePasscodes(ctx context.Context, email string) error {
	const op = "storage.InvalidateActivePasscodes"

	query := fmt.Sprintf("UPDATE %s SET used=TRUE WHERE email=$1 AND used=FALSE;", passcodesTable)
	if _, err := p.db.Exec(ctx, query, email); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (p *PostgresStorage) CreatePasscode(ctx context.Context, email, code string, createdAt time.Time) (models.Passcode, error) {
	const op = "storage.CreatePasscode"

	passcode, err := newPasscode(email, code, createdAt)
	if err != nil {
		return models.Passcode{}, fmt.Errorf("%s: %w", op, err)
	}

	query := fmt.Sprintf(`INSERT INTO %s(id, email, code_hash, created_at, used)
	VALUES ($1, $2, $3, $4, $5);`, passcodesTable)

	_, err = p.db.Exec(ctx, query, passcode.ID, passcode.Email, passcode.CodeHash, passcode.CreatedAt, passcode.Used)
	if err != nil {
		return models.Passcode{}, fmt.Errorf("%s: %w", op, err)
	}

	return passcode, nil
}

func (p *PostgresStorage) FindActivePasscode(ctx context.Context, email, code string) (models.Passcode, error) {
	const op = "storage.FindActivePasscode"

	query := fmt.Sprintf(`SELECT id, email, code_hash, created_at, used
	FROM %s WHERE email=$1 AND used=FALSE
	ORDER BY created_at DESC;`, passcodesTable)

	rows, err := p.db.Query(ctx, query, email)
	if err != nil {
		return models.Passcode{}, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var candidates []models.Passcode
	for rows.Next() {
		var passcode models.Passcode

		err := rows.Scan(&passcode.ID, &passcode.Email, &passcode.CodeHash, &passcode.CreatedAt, &passcode.Used)
		if err != nil {
			return models.Passcode{}, fmt.Errorf("%s: %w", op, err)
		}

		candidates = append(candidates, passcode)
	}
	if err := rows.Err(); err != nil {
		return models.Passcode{}, fmt.Errorf("%s (rows): %w", op, err)
	}

	passcode, ok := matchPasscode(candidates, code)
	if !ok {
		return models.Passcode{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	return passcode, nil
}

func (p *PostgresStorage) MarkPasscodeUsed(ctx context.Context, passcodeID uuid.UUID) error {
	const op = "storage.MarkPasscodeUsed"

	query := fmt.Sprintf("UPDATE %s SET used=TRUE WHERE id=$1 AND used=FALSE;", passcodesTable)

	tag, err := p.db.Exec(ctx, query, passcodeID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	return nil
}

func (p *PostgresStorage) DeleteStalePasscodes(ctx context.Context, before time.Time) (int64, error) {
	const op = "storage.DeleteStalePasscodes"

	query := fmt.Sprintf("DELETE FROM %s WHERE created_at < $1;", passcodesTable)

	tag, err := p.db.Exec(ctx, query, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected(), nil
}

func (p *PostgresStorage) Close() {
	p.db.Close()
}
