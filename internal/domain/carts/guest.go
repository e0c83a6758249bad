package carts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"kicks/internal/kv"

	"go.uber.org/zap"
)

// GuestBackend keeps a guest's cart and wishlist as two JSON documents in the
// device-scoped key/value store. Every commit re-serialises the whole
// collection it touched.
type GuestBackend struct {
	kv     kv.Store
	scope  string
	logger *zap.SugaredLogger
}

func NewGuestBackend(store kv.Store, guestToken string, logger *zap.SugaredLogger) *GuestBackend {
	return &GuestBackend{kv: store, scope: guestToken, logger: logger}
}

func (g *GuestBackend) Load(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	if err := g.read(ctx, kv.KeyCart, &snap.Lines); err != nil {
		return Snapshot{}, err
	}
	if err := g.read(ctx, kv.KeyWishlist, &snap.Wishlist); err != nil {
		return Snapshot{}, err
	}
	return normalize(snap), nil
}

// read decodes key into dst. A missing key leaves dst empty; a corrupt
// document is discarded rather than blocking the shopper.
func (g *GuestBackend) read(ctx context.Context, key string, dst any) error {
	raw, err := g.kv.Get(ctx, g.scope, key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read guest %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		g.logger.Warnw("discarding unreadable guest document", "key", key, "error", err)
	}
	return nil
}

func (g *GuestBackend) write(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode guest %s: %w", key, err)
	}
	if err := g.kv.Set(ctx, g.scope, key, string(raw)); err != nil {
		return fmt.Errorf("write guest %s: %w", key, err)
	}
	return nil
}

func (g *GuestBackend) Commit(ctx context.Context, op Op, next Snapshot) (Snapshot, error) {
	if op.Kind == OpReset {
		if err := g.kv.Delete(ctx, g.scope, kv.KeyCart); err != nil {
			return Snapshot{}, fmt.Errorf("reset guest cart: %w", err)
		}
		if err := g.kv.Delete(ctx, g.scope, kv.KeyWishlist); err != nil {
			return Snapshot{}, fmt.Errorf("reset guest wishlist: %w", err)
		}
		return Snapshot{Lines: []Line{}, Wishlist: []ProductKey{}}, nil
	}

	if op.touchesCart() {
		if err := g.write(ctx, kv.KeyCart, next.Lines); err != nil {
			return Snapshot{}, err
		}
	}
	if op.touchesWishlist() {
		if err := g.write(ctx, kv.KeyWishlist, next.Wishlist); err != nil {
			return Snapshot{}, err
		}
	}
	return next, nil
}
