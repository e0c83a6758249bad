package kv

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Get(ctx, "guest-1", KeyCart)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Set(ctx, "guest-1", KeyCart, `[]`))
	require.NoError(t, m.Set(ctx, "guest-2", KeyCart, `[{"productKey":"1"}]`))

	v, err := m.Get(ctx, "guest-1", KeyCart)
	require.NoError(t, err)
	assert.Equal(t, `[]`, v)

	require.NoError(t, m.Delete(ctx, "guest-1", KeyCart))
	_, err = m.Get(ctx, "guest-1", KeyCart)
	assert.ErrorIs(t, err, ErrNotFound)

	v, err = m.Get(ctx, "guest-2", KeyCart)
	require.NoError(t, err)
	assert.Contains(t, v, "productKey")
}

func TestPostgresGetMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT value\s+FROM local_storage`).
		WithArgs("guest-1", KeyWishlist).
		WillReturnRows(pgxmock.NewRows([]string{"value"}))

	_, err = NewPostgres(mock).Get(context.Background(), "guest-1", KeyWishlist)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSetAndGet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO local_storage`).
		WithArgs("guest-1", KeyCart, `[]`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT value\s+FROM local_storage`).
		WithArgs("guest-1", KeyCart).
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow(`[]`))

	store := NewPostgres(mock)
	require.NoError(t, store.Set(context.Background(), "guest-1", KeyCart, `[]`))

	v, err := store.Get(context.Background(), "guest-1", KeyCart)
	require.NoError(t, err)
	assert.Equal(t, `[]`, v)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSetError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO local_storage`).
		WillReturnError(errors.New("connection reset"))

	err = NewPostgres(mock).Set(context.Background(), "g", KeyCart, "x")
	assert.ErrorContains(t, err, "connection reset")
}
