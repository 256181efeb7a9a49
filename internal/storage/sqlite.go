package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"otp_auth/internal/models"

	"github.com/gofrs/uuid"
	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteStorage keeps accounts and passcodes in a single SQLite file.
// Pass ":memory:" for a throwaway database.
type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(ctx context.Context, path string) (*SQLiteStorage, error) {
	const op = "storage.NewSQLiteStorage"

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// One connection: SQLite has a single writer, and each ":memory:"
	// connection would otherwise see its own empty database.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := migrate(ctx, db, goose.DialectSQLite3, "sqlite"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &SQLiteStorage{db: db}, nil
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

func (s *SQLiteStorage) CreateAccount(ctx context.Context, email string, createdAt time.Time) (models.Account, error) {
	const op = "storage.CreateAccount"

	id, err := uuid.NewV4()
	if err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	account := models.Account{ID: id, Email: email, CreatedAt: createdAt.UTC()}
	query := fmt.Sprintf("INSERT INTO %s(id, email, created_at) VALUES (?, ?, ?);", accountsTable)

	if _, err := s.db.ExecContext(ctx, query, account.ID, account.Email, account.CreatedAt); err != nil {
		if isSQLiteUniqueViolation(err) {
			return models.Account{}, fmt.Errorf("%s: %w", op, ErrConflict)
		}
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return account, nil
}

func (s *SQLiteStorage) FindAccountByEmail(ctx context.Context, email string) (models.Account, error) {
	const op = "storage.FindAccountByEmail"

	var account models.Account
	query := fmt.Sprintf("SELECT id, email, created_at FROM %s WHERE email=?;", accountsTable)

	err := s.db.QueryRowContext(ctx, query, email).Scan(&account.ID, &account.Email, &account.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}
	account.CreatedAt = account.CreatedAt.UTC()

	return account, nil
}

func (s *SQLiteStorage) InvalidateActivePasscodes(ctx context.Context, email string) error {
	const op = "storage.InvalidateActivePasscodes"

	query := fmt.Sprintf("UPDATE %s SET used=1 WHERE email=? AND used=0;", passcodesTable)
	if _, err := s.db.ExecContext(ctx, query, email); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *SQLiteStorage) CreatePasscode(ctx context.Context, email, code string, createdAt time.Time) (models.Passcode, error) {
	const op = "storage.CreatePasscode"

	passcode, err := newPasscode(email, code, createdAt)
	if err != nil {
		return models.Passcode{}, fmt.Errorf("%s: %w", op, err)
	}

	query := fmt.Sprintf("INSERT INTO %s(id, email, code_hash, created_at, used) VALUES (?, ?, ?, ?, ?);", passcodesTable)

	_, err = s.db.ExecContext(ctx, query, passcode.ID, passcode.Email, passcode.CodeHash, passcode.CreatedAt, passcode.Used)
	if err != nil {
		return models.Passcode{}, fmt.Errorf("%s: %w", op, err)
	}

	return passcode, nil
}

func (s *SQLiteStorage) FindActivePasscode(ctx context.Context, email, code string) (models.Passcode, error) {
	const op = "storage.FindActivePasscode"

	query := fmt.Sprintf(`SELECT id, email, code_hash, created_at, used
	FROM %s WHERE email=? AND used=0
	ORDER BY created_at DESC;`, passcodesTable)

	rows, err := s.db.QueryContext(ctx, query, email)
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
		passcode.CreatedAt = passcode.CreatedAt.UTC()

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

func (s *SQLiteStorage) MarkPasscodeUsed(ctx context.Context, passcodeID uuid.UUID) error {
	const op = "storage.MarkPasscodeUsed"

	query := fmt.Sprintf("UPDATE %s SET used=1 WHERE id=? AND used=0;", passcodesTable)

	result, err := s.db.ExecContext(ctx, query, passcodeID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	return nil
}

func (s *SQLiteStorage) DeleteStalePasscodes(ctx context.Context, before time.Time) (int64, error) {
	const op = "storage.DeleteStalePasscodes"

	query := fmt.Sprintf("DELETE FROM %s WHERE created_at < ?;", passcodesTable)

	result, err := s.db.ExecContext(ctx, query, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return affected, nil
}

func (s *SQLiteStorage) Close() {
	s.db.Close()
}
