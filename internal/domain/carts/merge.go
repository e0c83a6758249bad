package carts

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// MergeGuestIntoUser hands a guest's cart over to the account that just
// signed in on the same device. Lines sharing a (product, color, size) key
// have their quantities summed and wishlists are unioned. The guest documents
// are cleared only after the user's cart has been written, so a failed merge
// loses nothing. A successful merge may leave the guest documents behind if
// clearing them fails; the guest token must be retired afterwards.
func MergeGuestIntoUser(ctx context.Context, guest, user Backend, logger *zap.SugaredLogger) (Snapshot, error) {
	incoming, err := guest.Load(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: load guest cart: %w", ErrSync, err)
	}

	current, err := user.Load(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: load user cart: %w", ErrSync, err)
	}
	if incoming.Empty() {
		return current, nil
	}

	merged, err := user.Commit(ctx, Op{Kind: OpMerge, Incoming: incoming}, Merge(current, incoming))
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: merge: %w", ErrSync, err)
	}

	if _, err := guest.Commit(ctx, Op{Kind: OpReset}, Snapshot{}); err != nil {
		// The lines are already on the account. Callers must stop using this
		// guest scope, or the leftover document is merged again.
		logger.Warnw("guest cart not cleared after merge", "error", err)
	}

	logger.Infow("guest cart merged", "lines", len(incoming.Lines), "wishlist", len(incoming.Wishlist))
	return merged, nil
}
