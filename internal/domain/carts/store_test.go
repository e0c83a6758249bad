package carts

import (
	"context"
	"errors"
	"testing"

	"kicks/internal/kv"
	"kicks/internal/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// flakyBackend wraps a Backend and fails commits while down is set.
type flakyBackend struct {
	Backend
	down    bool
	commits int
}

func (f *flakyBackend) Commit(ctx context.Context, op Op, next Snapshot) (Snapshot, error) {
	f.commits++
	if f.down {
		return Snapshot{}, errors.New("network unreachable")
	}
	return f.Backend.Commit(ctx, op, next)
}

func openGuest(t *testing.T, store kv.Store) *Store {
	t.Helper()
	s, err := Open(context.Background(), NewGuestBackend(store, "guest-1", zap.NewNop().Sugar()), zap.NewNop().Sugar())
	require.NoError(t, err)
	return s
}

func TestStoreAddAndReload(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()

	s := openGuest(t, mem)
	require.NoError(t, s.AddToCart(ctx, blackShoe(1)))
	require.NoError(t, s.AddToCart(ctx, blackShoe(1)))
	require.NoError(t, s.AddToCart(ctx, Line{ProductKey: "2", Quantity: 1, UnitPriceDisplay: "GHS 320"}))
	require.NoError(t, s.AddToWishlist(ctx, "5"))

	reopened := openGuest(t, mem)
	lines := reopened.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, []ProductKey{"5"}, reopened.Wishlist())
	assert.Equal(t, 3, reopened.TotalItemCount())
	assert.Equal(t, "GHS 1220.00", reopened.View("GHS ").SubtotalDisplay)
}

func TestStoreRejectsInvalidLine(t *testing.T) {
	s := openGuest(t, kv.NewMemory())

	err := s.AddToCart(context.Background(), Line{ProductKey: " ", Quantity: 1})
	assert.ErrorIs(t, err, ErrInvalidLine)

	err = s.AddToCart(context.Background(), Line{ProductKey: "1", Quantity: 0})
	assert.ErrorIs(t, err, ErrInvalidLine)
	assert.Empty(t, s.Lines())
}

func TestStoreUpdateQuantity(t *testing.T) {
	ctx := context.Background()
	s := openGuest(t, kv.NewMemory())
	require.NoError(t, s.AddToCart(ctx, blackShoe(1)))

	key := blackShoe(1).Key()
	require.NoError(t, s.UpdateQuantity(ctx, key, 4))
	assert.Equal(t, 4, s.TotalItemCount())

	require.NoError(t, s.UpdateQuantity(ctx, key, -5))
	assert.Empty(t, s.Lines())

	assert.ErrorIs(t, s.UpdateQuantity(ctx, key, 1), ErrLineNotFound)
}

func TestStoreLineQuantityLimit(t *testing.T) {
	ctx := context.Background()
	s := openGuest(t, kv.NewMemory())
	require.NoError(t, s.AddToCart(ctx, blackShoe(60)))

	err := s.AddToCart(ctx, blackShoe(40))
	assert.ErrorIs(t, err, ErrInvalidLine)
	assert.Equal(t, 60, s.TotalItemCount())

	require.NoError(t, s.AddToCart(ctx, blackShoe(39)))
	assert.Equal(t, MaxLineQuantity, s.TotalItemCount())

	key := blackShoe(1).Key()
	assert.ErrorIs(t, s.UpdateQuantity(ctx, key, 1<<60), ErrInvalidLine)
	assert.Equal(t, MaxLineQuantity, s.TotalItemCount())

	require.NoError(t, s.UpdateQuantity(ctx, key, 5))
	assert.Equal(t, money.FromMajor(5*450), s.Subtotal())
}

func TestStoreRemove(t *testing.T) {
	ctx := context.Background()
	s := openGuest(t, kv.NewMemory())
	red := blackShoe(1)
	red.Variant.Color = "Red"
	require.NoError(t, s.AddToCart(ctx, blackShoe(1)))
	require.NoError(t, s.AddToCart(ctx, red))

	require.NoError(t, s.RemoveLine(ctx, red.Key()))
	require.Len(t, s.Lines(), 1)

	require.NoError(t, s.RemoveLine(ctx, red.Key()))
	require.NoError(t, s.AddToCart(ctx, red))
	require.NoError(t, s.RemoveFromCart(ctx, "1"))
	assert.Empty(t, s.Lines())
}

func TestStoreUpdateLineVariant(t *testing.T) {
	ctx := context.Background()
	s := openGuest(t, kv.NewMemory())
	require.NoError(t, s.AddToCart(ctx, blackShoe(2)))

	require.NoError(t, s.UpdateLineVariant(ctx, blackShoe(1).Key(), Variant{Size: "44"}))
	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "44", lines[0].Variant.Size)
	assert.Equal(t, 2, lines[0].Quantity)

	err := s.UpdateLineVariant(ctx, blackShoe(1).Key(), Variant{Size: "45"})
	assert.ErrorIs(t, err, ErrLineNotFound)
}

func TestStoreLinesAreCopies(t *testing.T) {
	ctx := context.Background()
	s := openGuest(t, kv.NewMemory())
	require.NoError(t, s.AddToCart(ctx, blackShoe(1)))

	lines := s.Lines()
	lines[0].Quantity = 99

	assert.Equal(t, 1, s.Lines()[0].Quantity)
}

func TestStoreWishlistNoOps(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyBackend{Backend: NewGuestBackend(kv.NewMemory(), "g", zap.NewNop().Sugar())}
	s, err := Open(ctx, flaky, zap.NewNop().Sugar())
	require.NoError(t, err)

	require.NoError(t, s.AddToWishlist(ctx, "5"))
	require.NoError(t, s.AddToWishlist(ctx, "5"))
	require.NoError(t, s.RemoveFromWishlist(ctx, "999"))

	assert.Equal(t, []ProductKey{"5"}, s.Wishlist())
	assert.True(t, s.InWishlist("5"))
	assert.Equal(t, 1, flaky.commits)
}

func TestStoreFailedCommitKeepsState(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyBackend{Backend: NewGuestBackend(kv.NewMemory(), "g", zap.NewNop().Sugar())}
	s, err := Open(ctx, flaky, zap.NewNop().Sugar())
	require.NoError(t, err)
	require.NoError(t, s.AddToCart(ctx, blackShoe(1)))
	require.NoError(t, s.AddToWishlist(ctx, "5"))

	flaky.down = true
	before := flaky.commits

	assert.ErrorIs(t, s.AddToCart(ctx, blackShoe(3)), ErrSync)
	assert.ErrorIs(t, s.UpdateQuantity(ctx, blackShoe(1).Key(), 0), ErrSync)
	assert.ErrorIs(t, s.ClearCart(ctx), ErrSync)
	assert.ErrorIs(t, s.RemoveFromWishlist(ctx, "5"), ErrSync)

	assert.Equal(t, before+4, flaky.commits, "failed commits are not retried")
	require.Len(t, s.Lines(), 1)
	assert.Equal(t, 1, s.Lines()[0].Quantity)
	assert.Equal(t, []ProductKey{"5"}, s.Wishlist())

	flaky.down = false
	require.NoError(t, s.ClearCart(ctx))
	assert.Empty(t, s.Lines())
	assert.Equal(t, []ProductKey{"5"}, s.Wishlist())
}

type failingLoad struct{ Backend }

func (failingLoad) Load(context.Context) (Snapshot, error) {
	return Snapshot{}, errors.New("timeout")
}

func TestOpenWrapsLoadError(t *testing.T) {
	_, err := Open(context.Background(), failingLoad{}, zap.NewNop().Sugar())
	assert.ErrorIs(t, err, ErrSync)
	assert.ErrorContains(t, err, "timeout")
}

func TestGuestBackendDiscardsCorruptDocument(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	require.NoError(t, mem.Set(ctx, "g", kv.KeyCart, "{not json"))
	require.NoError(t, mem.Set(ctx, "g", kv.KeyWishlist, `["3","3"]`))

	snap, err := NewGuestBackend(mem, "g", zap.NewNop().Sugar()).Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Lines)
	assert.Equal(t, []ProductKey{"3"}, snap.Wishlist)
}

func TestGuestBackendScopesByToken(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	a := openGuest(t, mem)
	require.NoError(t, a.AddToCart(ctx, blackShoe(1)))

	other, err := Open(ctx, NewGuestBackend(mem, "guest-2", zap.NewNop().Sugar()), zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.Empty(t, other.Lines())
}
