package storage

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSQLite(t *testing.T) *SQLiteStorage {
	t.Helper()

	st, err := NewSQLiteStorage(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(st.Close)

	return st
}

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func TestSQLite_CreateAndFindAccount(t *testing.T) {
	st := setupSQLite(t)
	ctx := context.Background()

	created, err := st.CreateAccount(ctx, "a@b.com", t0)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, "a@b.com", created.Email)

	found, err := st.FindAccountByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, created.Email, found.Email)
	assert.True(t, created.CreatedAt.Equal(found.CreatedAt), "created_at %v != %v", created.CreatedAt, found.CreatedAt)
}

func TestSQLite_CreateAccountConflict(t *testing.T) {
	st := setupSQLite(t)
	ctx := context.Background()

	_, err := st.CreateAccount(ctx, "a@b.com", t0)
	require.NoError(t, err)

	_, err = st.CreateAccount(ctx, "a@b.com", t0)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestSQLite_FindAccountNotFound(t *testing.T) {
	st := setupSQLite(t)

	_, err := st.FindAccountByEmail(context.Background(), "nobody@b.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_PasscodeStoredAsHash(t *testing.T) {
	st := setupSQLite(t)
	ctx := context.Background()

	p, err := st.CreatePasscode(ctx, "a@b.com", "123456", t0)
	require.NoError(t, err)
	assert.False(t, p.Used)
	assert.NotEqual(t, "123456", p.CodeHash)

	var stored string
	require.NoError(t, st.db.QueryRowContext(ctx, "SELECT code_hash FROM passcodes WHERE id=?", p.ID).Scan(&stored))
	assert.Equal(t, p.CodeHash, stored)
	assert.NotContains(t, stored, "123456")
}

func TestSQLite_FindActivePasscode(t *testing.T) {
	st := setupSQLite(t)
	ctx := context.Background()

	created, err := st.CreatePasscode(ctx, "a@b.com", "123456", t0)
	require.NoError(t, err)

	found, err := st.FindActivePasscode(ctx, "a@b.com", "123456")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.True(t, created.CreatedAt.Equal(found.CreatedAt))
	assert.False(t, found.Used)

	_, err = st.FindActivePasscode(ctx, "a@b.com", "654321")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = st.FindActivePasscode(ctx, "other@b.com", "123456")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_FindActivePasscodeNewestFirst(t *testing.T) {
	st := setupSQLite(t)
	ctx := context.Background()

	_, err := st.CreatePasscode(ctx, "a@b.com", "111111", t0)
	require.NoError(t, err)
	newer, err := st.CreatePasscode(ctx, "a@b.com", "111111", t0.Add(time.Minute))
	require.NoError(t, err)

	found, err := st.FindActivePasscode(ctx, "a@b.com", "111111")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, found.ID)
}

func TestSQLite_InvalidateActivePasscodes(t *testing.T) {
	st := setupSQLite(t)
	ctx := context.Background()

	_, err := st.CreatePasscode(ctx, "a@b.com", "111111", t0)
	require.NoError(t, err)
	_, err = st.CreatePasscode(ctx, "a@b.com", "222222", t0)
	require.NoError(t, err)
	other, err := st.CreatePasscode(ctx, "other@b.com", "333333", t0)
	require.NoError(t, err)

	require.NoError(t, st.InvalidateActivePasscodes(ctx, "a@b.com"))
	require.NoError(t, st.InvalidateActivePasscodes(ctx, "a@b.com"))

	_, err = st.FindActivePasscode(ctx, "a@b.com", "111111")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = st.FindActivePasscode(ctx, "a@b.com", "222222")
	assert.ErrorIs(t, err, ErrNotFound)

	found, err := st.FindActivePasscode(ctx, "other@b.com", "333333")
	require.NoError(t, err)
	assert.Equal(t, other.ID, found.ID)
}

func TestSQLite_MarkPasscodeUsed(t *testing.T) {
	st := setupSQLite(t)
	ctx := context.Background()

	p, err := st.CreatePasscode(ctx, "a@b.com", "123456", t0)
	require.NoError(t, err)

	require.NoError(t, st.MarkPasscodeUsed(ctx, p.ID))
	assert.ErrorIs(t, st.MarkPasscodeUsed(ctx, p.ID), ErrNotFound)

	_, err = st.FindActivePasscode(ctx, "a@b.com", "123456")
	assert.ErrorIs(t, err, ErrNotFound)

	missing, err := uuid.NewV4()
	require.NoError(t, err)
	assert.ErrorIs(t, st.MarkPasscodeUsed(ctx, missing), ErrNotFound)
}

func TestSQLite_DeleteStalePasscodes(t *testing.T) {
	st := setupSQLite(t)
	ctx := context.Background()

	_, err := st.CreatePasscode(ctx, "a@b.com", "111111", t0.Add(-48*time.Hour))
	require.NoError(t, err)
	_, err = st.CreatePasscode(ctx, "b@b.com", "222222", t0.Add(-25*time.Hour))
	require.NoError(t, err)
	fresh, err := st.CreatePasscode(ctx, "c@b.com", "333333", t0)
	require.NoError(t, err)

	deleted, err := st.DeleteStalePasscodes(ctx, t0.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	found, err := st.FindActivePasscode(ctx, "c@b.com", "333333")
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, found.ID)

	deleted, err = st.DeleteStalePasscodes(ctx, t0.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
