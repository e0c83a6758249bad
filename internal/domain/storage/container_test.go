package storage

import (
	"context"
	"errors"
	"testing"

	"kicks/internal/domain/carts"
	"kicks/internal/domain/orders"
	"kicks/internal/kv"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewContainerDrivers(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	logger := zap.NewNop().Sugar()

	c, err := NewContainer(mock, Options{}, logger)
	require.NoError(t, err)
	assert.IsType(t, &kv.Postgres{}, c.KV)
	assert.IsType(t, &orders.Repository{}, c.Orders)

	c, err = NewContainer(mock, Options{KVDriver: KVMemory, OrderStore: OrdersDocument}, logger)
	require.NoError(t, err)
	assert.IsType(t, &kv.Memory{}, c.KV)
	assert.IsType(t, &orders.ListStore{}, c.Orders)

	_, err = NewContainer(mock, Options{KVDriver: "redis"}, logger)
	assert.Error(t, err)
}

func TestCartBackend(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	c, err := NewContainer(mock, Options{KVDriver: KVMemory}, zap.NewNop().Sugar())
	require.NoError(t, err)

	uid := int64(7)
	assert.IsType(t, &carts.RemoteBackend{}, c.CartBackend(&uid, "guest-1"))
	assert.IsType(t, &carts.GuestBackend{}, c.CartBackend(nil, "guest-1"))
}

func TestWithSalesTx(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	c, err := NewContainer(mock, Options{KVDriver: KVMemory}, zap.NewNop().Sugar())
	require.NoError(t, err)

	t.Run("commits on success", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectCommit()

		err := c.WithSalesTx(context.Background(), func(s *SalesTx) error {
			assert.IsType(t, &orders.Repository{}, s.Orders)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := c.WithSalesTx(context.Background(), func(*SalesTx) error { return boom })
		assert.ErrorIs(t, err, boom)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}
