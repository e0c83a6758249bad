package carts

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"kicks/internal/money"

	"go.uber.org/zap"
)

// Store is one shopper's cart and wishlist for the lifetime of a session or
// request: loaded once from its backend, mutated through the methods below,
// persisted after every mutation. Both guest and signed-in shoppers get the
// same contract; only the Backend differs.
type Store struct {
	mu      sync.Mutex
	backend Backend
	logger  *zap.SugaredLogger
	snap    Snapshot
}

// Open loads the current snapshot from backend.
func Open(ctx context.Context, backend Backend, logger *zap.SugaredLogger) (*Store, error) {
	snap, err := backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load: %w", ErrSync, err)
	}
	return &Store{backend: backend, logger: logger, snap: normalize(snap)}, nil
}

// commit persists next. On failure the in-memory snapshot is left as it was
// and the error is reported to the caller; there is no retry.
func (s *Store) commit(ctx context.Context, op Op, next Snapshot) error {
	saved, err := s.backend.Commit(ctx, op, next)
	if err != nil {
		s.logger.Warnw("cart mutation not persisted", "op", op.Kind, "product", op.Key.ProductKey, "error", err)
		return fmt.Errorf("%w: %s: %w", ErrSync, op.Kind, err)
	}
	s.snap = saved
	return nil
}

func (s *Store) AddToCart(ctx context.Context, line Line) error {
	line.ProductKey = ProductKey(strings.TrimSpace(string(line.ProductKey)))
	if line.ProductKey == "" || line.Quantity < 1 {
		return fmt.Errorf("%w: product key and a quantity of at least 1 are required", ErrInvalidLine)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	have := 0
	if i := indexOf(s.snap.Lines, line.Key()); i >= 0 {
		have = s.snap.Lines[i].Quantity
	}
	if line.Quantity > MaxLineQuantity-have {
		return fmt.Errorf("%w: at most %d pairs per line, %d already in the cart", ErrInvalidLine, MaxLineQuantity, have)
	}

	return s.commit(ctx, Op{Kind: OpAddLine, Key: line.Key(), Line: line}, addLine(s.snap, line))
}

// RemoveLine deletes exactly the line identified by key. Removing a line that
// is not in the cart is a no-op.
func (s *Store) RemoveLine(ctx context.Context, key LineKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if indexOf(s.snap.Lines, key) < 0 {
		return nil
	}
	return s.commit(ctx, Op{Kind: OpRemoveLines, Key: key}, removeLines(s.snap, key, false))
}

// RemoveFromCart deletes every line of product, whatever its color and size.
func (s *Store) RemoveFromCart(ctx context.Context, product ProductKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := LineKey{ProductKey: product}
	next := removeLines(s.snap, key, true)
	if len(next.Lines) == len(s.snap.Lines) {
		return nil
	}
	return s.commit(ctx, Op{Kind: OpRemoveLines, Key: key, AllVariants: true}, next)
}

// UpdateQuantity sets the quantity of the line at key. n <= 0 removes it.
func (s *Store) UpdateQuantity(ctx context.Context, key LineKey, n int) error {
	if n > MaxLineQuantity {
		return fmt.Errorf("%w: at most %d pairs per line", ErrInvalidLine, MaxLineQuantity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next, ok := setQuantity(s.snap, key, n)
	if !ok {
		return ErrLineNotFound
	}
	if n <= 0 {
		return s.commit(ctx, Op{Kind: OpRemoveLines, Key: key}, next)
	}

	i := indexOf(next.Lines, key)
	return s.commit(ctx, Op{Kind: OpSetQuantity, Key: key, Line: next.Lines[i]}, next)
}

// UpdateLineVariant changes color and/or size of the line at key. Orders
// already placed keep their own copy of the line and are not affected.
func (s *Store) UpdateLineVariant(ctx context.Context, key LineKey, v Variant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, moved, ok := changeVariant(s.snap, key, v)
	if !ok {
		return ErrLineNotFound
	}
	if moved.Key() == key {
		return nil
	}
	return s.commit(ctx, Op{Kind: OpChangeVariant, Key: key, Line: moved}, next)
}

func (s *Store) ClearCart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.commit(ctx, Op{Kind: OpClearCart}, clearLines(s.snap))
}

// AddToWishlist is idempotent: adding a product already present does nothing.
func (s *Store) AddToWishlist(ctx context.Context, product ProductKey) error {
	product = ProductKey(strings.TrimSpace(string(product)))
	if product == "" {
		return fmt.Errorf("%w: product key is required", ErrInvalidLine)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if hasWish(s.snap, product) {
		return nil
	}
	return s.commit(ctx, Op{Kind: OpAddWishlist, Product: product}, addWish(s.snap, product))
}

// RemoveFromWishlist is idempotent: removing an absent product does nothing.
func (s *Store) RemoveFromWishlist(ctx context.Context, product ProductKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !hasWish(s.snap, product) {
		return nil
	}
	return s.commit(ctx, Op{Kind: OpRemoveWishlist, Product: product}, removeWish(s.snap, product))
}

// Lines returns a copy of the cart lines; callers may keep and modify it.
func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snap.Clone().Lines
}

func (s *Store) Wishlist() []ProductKey {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snap.Clone().Wishlist
}

func (s *Store) InWishlist(product ProductKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return hasWish(s.snap, product)
}

func (s *Store) Subtotal() money.Amount {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Subtotal(s.snap.Lines)
}

func (s *Store) TotalItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return ItemCount(s.snap.Lines)
}

// View is the read model served to clients.
type View struct {
	Items           []Line       `json:"items"`
	Wishlist        []ProductKey `json:"wishlist"`
	ItemCount       int          `json:"item_count"`
	Subtotal        money.Amount `json:"subtotal"`
	SubtotalDisplay string       `json:"subtotal_display"`
}

func (s *Store) View(currencyPrefix string) View {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snap.Clone()
	sub := Subtotal(snap.Lines)
	return View{
		Items:           snap.Lines,
		Wishlist:        snap.Wishlist,
		ItemCount:       ItemCount(snap.Lines),
		Subtotal:        sub,
		SubtotalDisplay: money.Format(sub, currencyPrefix),
	}
}
