package storage

import (
	"context"
	"fmt"

	"kicks/internal/domain/carts"
	"kicks/internal/domain/orders"
	"kicks/internal/domain/users"
	"kicks/internal/infra/dbx"
	"kicks/internal/kv"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const (
	KVMemory   = "memory"
	KVPostgres = "postgres"

	OrdersTable    = "table"
	OrdersDocument = "document"
)

type Options struct {
	KVDriver   string
	OrderStore string
}

type Container struct {
	db     dbx.TxBeginner
	logger *zap.SugaredLogger

	// documentOrders is set when orders live in the kv store. They cannot
	// join a database transaction.
	documentOrders bool

	Users  users.Store
	Orders orders.Store
	KV     kv.Store
}

func NewContainer(db dbx.TxBeginner, opts Options, logger *zap.SugaredLogger) (*Container, error) {
	c := &Container{
		db:     db,
		logger: logger,
		Users:  users.NewRepository(db),
	}

	switch opts.KVDriver {
	case "", KVPostgres:
		c.KV = kv.NewPostgres(db)
	case KVMemory:
		c.KV = kv.NewMemory()
	default:
		return nil, fmt.Errorf("unknown kv driver %q", opts.KVDriver)
	}

	switch opts.OrderStore {
	case "", OrdersTable:
		c.Orders = orders.NewRepository(db)
	case OrdersDocument:
		c.Orders = orders.NewListStore(c.KV)
		c.documentOrders = true
	default:
		return nil, fmt.Errorf("unknown order store %q", opts.OrderStore)
	}

	return c, nil
}

// CartBackend returns where the shopper's cart lives: the user's rows when
// signed in, otherwise the guest document for guestToken.
func (c *Container) CartBackend(userID *int64, guestToken string) carts.Backend {
	if userID != nil {
		return carts.NewRemoteBackend(c.db, *userID)
	}
	return c.GuestCart(guestToken)
}

func (c *Container) GuestCart(guestToken string) carts.Backend {
	return carts.NewGuestBackend(c.KV, guestToken, c.logger)
}

// SalesTx is a tx-scoped set of stores for payment settlement.
type SalesTx struct {
	Orders orders.Store
	q      dbx.Querier
}

func (s *SalesTx) UserCart(userID int64) carts.Backend {
	return carts.NewRemoteBackend(s.q, userID)
}

// WithSalesTx runs fn in one database transaction. Document-backed orders are
// written outside of it.
func (c *Container) WithSalesTx(ctx context.Context, fn func(s *SalesTx) error) error {
	tx, err := c.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx) // safe even if already committed
	}()

	s := &SalesTx{Orders: orders.NewRepository(tx), q: tx}
	if c.documentOrders {
		s.Orders = c.Orders
	}

	if err := fn(s); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
