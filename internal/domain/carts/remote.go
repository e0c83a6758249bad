package carts

import (
	"context"
	"errors"
	"fmt"

	"kicks/internal/infra/dbx"

	"github.com/jackc/pgx/v5"
)

// RemoteBackend stores a signed-in user's cart as rows keyed by
// (user_id, product_key, color, size) and the wishlist as (user_id, product_key).
// Every mutation is its own write and the snapshot is refetched afterwards.
type RemoteBackend struct {
	db     dbx.Querier
	userID int64
}

func NewRemoteBackend(q dbx.Querier, userID int64) *RemoteBackend {
	return &RemoteBackend{db: q, userID: userID}
}

func (r *RemoteBackend) Load(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{Lines: []Line{}, Wishlist: []ProductKey{}}

	rows, err := r.db.Query(ctx, `
SELECT product_key, color, size, quantity, unit_price_display, name, image
FROM cart_items
WHERE user_id = $1
ORDER BY created_at ASC, id ASC
`, r.userID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			l   Line
			key string
		)
		if err := rows.Scan(
			&key,
			&l.Variant.Color,
			&l.Variant.Size,
			&l.Quantity,
			&l.UnitPriceDisplay,
			&l.Name,
			&l.Image,
		); err != nil {
			return Snapshot{}, fmt.Errorf("scan cart item: %w", err)
		}
		l.ProductKey = ProductKey(key)
		snap.Lines = append(snap.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("cart items rows: %w", err)
	}

	wrows, err := r.db.Query(ctx, `
SELECT product_key
FROM wishlist_items
WHERE user_id = $1
ORDER BY created_at ASC
`, r.userID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load wishlist: %w", err)
	}
	defer wrows.Close()

	for wrows.Next() {
		var key string
		if err := wrows.Scan(&key); err != nil {
			return Snapshot{}, fmt.Errorf("scan wishlist item: %w", err)
		}
		snap.Wishlist = append(snap.Wishlist, ProductKey(key))
	}
	if err := wrows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("wishlist rows: %w", err)
	}

	return snap, nil
}

func (r *RemoteBackend) Commit(ctx context.Context, op Op, _ Snapshot) (Snapshot, error) {
	var err error
	switch op.Kind {
	case OpChangeVariant, OpMerge, OpReset:
		err = r.inTx(ctx, func(q dbx.Querier) error { return r.apply(ctx, q, op) })
	default:
		err = r.apply(ctx, r.db, op)
	}
	if err != nil {
		return Snapshot{}, err
	}
	return r.Load(ctx)
}

// inTx runs fn in a transaction when the backend holds a pool. A backend
// built on a pgx.Tx is already transactional and runs fn directly.
func (r *RemoteBackend) inTx(ctx context.Context, fn func(q dbx.Querier) error) error {
	b, ok := r.db.(dbx.TxBeginner)
	if !ok {
		return fn(r.db)
	}

	tx, err := b.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin cart tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // no-op after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *RemoteBackend) apply(ctx context.Context, q dbx.Querier, op Op) error {
	switch op.Kind {
	case OpAddLine:
		return r.upsertAdd(ctx, q, op.Line, op.Line.Quantity)

	case OpSetQuantity:
		tag, err := q.Exec(ctx, `
UPDATE cart_items
SET quantity = $5,
    updated_at = now()
WHERE user_id = $1 AND product_key = $2 AND color = $3 AND size = $4
`, r.userID, string(op.Key.ProductKey), op.Key.Color, op.Key.Size, op.Line.Quantity)
		if err != nil {
			return fmt.Errorf("update qty: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrLineNotFound
		}
		return nil

	case OpChangeVariant:
		var qty int
		err := q.QueryRow(ctx, `
DELETE FROM cart_items
WHERE user_id = $1 AND product_key = $2 AND color = $3 AND size = $4
RETURNING quantity
`, r.userID, string(op.Key.ProductKey), op.Key.Color, op.Key.Size).Scan(&qty)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrLineNotFound
			}
			return fmt.Errorf("detach line: %w", err)
		}
		return r.upsertAdd(ctx, q, op.Line, qty)

	case OpRemoveLines:
		if op.AllVariants {
			_, err := q.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND product_key = $2`, r.userID, string(op.Key.ProductKey))
			if err != nil {
				return fmt.Errorf("remove product: %w", err)
			}
			return nil
		}
		_, err := q.Exec(ctx, `
DELETE FROM cart_items
WHERE user_id = $1 AND product_key = $2 AND color = $3 AND size = $4
`, r.userID, string(op.Key.ProductKey), op.Key.Color, op.Key.Size)
		if err != nil {
			return fmt.Errorf("remove line: %w", err)
		}
		return nil

	case OpClearCart:
		if _, err := q.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, r.userID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		return nil

	case OpAddWishlist:
		return r.insertWish(ctx, q, op.Product)

	case OpRemoveWishlist:
		_, err := q.Exec(ctx, `DELETE FROM wishlist_items WHERE user_id = $1 AND product_key = $2`, r.userID, string(op.Product))
		if err != nil {
			return fmt.Errorf("remove wishlist item: %w", err)
		}
		return nil

	case OpMerge:
		for _, l := range op.Incoming.Lines {
			if err := r.upsertAdd(ctx, q, l, l.Quantity); err != nil {
				return err
			}
		}
		for _, p := range op.Incoming.Wishlist {
			if err := r.insertWish(ctx, q, p); err != nil {
				return err
			}
		}
		return nil

	case OpReset:
		if _, err := q.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, r.userID); err != nil {
			return fmt.Errorf("reset cart: %w", err)
		}
		if _, err := q.Exec(ctx, `DELETE FROM wishlist_items WHERE user_id = $1`, r.userID); err != nil {
			return fmt.Errorf("reset wishlist: %w", err)
		}
		return nil
	}

	return fmt.Errorf("unsupported cart op %q", op.Kind)
}

// upsertAdd inserts l with qty or, when the (user, product, color, size) row
// exists, adds qty to it. The existing row keeps its captured price.
func (r *RemoteBackend) upsertAdd(ctx context.Context, q dbx.Querier, l Line, qty int) error {
	_, err := q.Exec(ctx, `
INSERT INTO cart_items (user_id, product_key, color, size, quantity, unit_price_display, name, image)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (user_id, product_key, color, size)
DO UPDATE SET
  quantity   = LEAST(cart_items.quantity + EXCLUDED.quantity, $9),
  updated_at = now()
`, r.userID, string(l.ProductKey), l.Variant.Color, l.Variant.Size, capQuantity(qty), l.UnitPriceDisplay, l.Name, l.Image, MaxLineQuantity)
	if err != nil {
		return fmt.Errorf("add item: %w", err)
	}
	return nil
}

func (r *RemoteBackend) insertWish(ctx context.Context, q dbx.Querier, p ProductKey) error {
	_, err := q.Exec(ctx, `
INSERT INTO wishlist_items (user_id, product_key)
VALUES ($1, $2)
ON CONFLICT (user_id, product_key) DO NOTHING
`, r.userID, string(p))
	if err != nil {
		return fmt.Errorf("add wishlist item: %w", err)
	}
	return nil
}
