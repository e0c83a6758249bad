package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"kicks/internal/kv"
	"kicks/internal/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListStoreAppendsConcurrently(t *testing.T) {
	ctx := context.Background()
	store := NewListStore(kv.NewMemory())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o := &Order{OrderNumber: fmt.Sprintf("%06d", i), Status: StatusPending, CreatedAt: placedAt}
			assert.NoError(t, store.Insert(ctx, o))
		}(i)
	}
	wg.Wait()

	_, total, err := store.ListAll(ctx, "", 100, 0)
	require.NoError(t, err)
	assert.Equal(t, 20, total)
}

func TestListStoreOwnerLists(t *testing.T) {
	ctx := context.Background()
	store := NewListStore(kv.NewMemory())
	uid := int64(7)
	guest := "guest-9"

	require.NoError(t, store.Insert(ctx, &Order{OrderNumber: "000001", UserID: &uid, CreatedAt: placedAt}))
	require.NoError(t, store.Insert(ctx, &Order{OrderNumber: "000002", GuestToken: &guest, CreatedAt: placedAt.Add(time.Hour)}))
	require.NoError(t, store.Insert(ctx, &Order{OrderNumber: "000003", UserID: &uid, CreatedAt: placedAt.Add(2 * time.Hour)}))

	mine, total, err := store.ListByUser(ctx, uid, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "000003", mine[0].OrderNumber, "newest first")

	theirs, total, err := store.ListByGuest(ctx, guest, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "000002", theirs[0].OrderNumber)

	pageTwo, total, err := store.ListByUser(ctx, uid, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, pageTwo, 1)
	assert.Equal(t, "000001", pageTwo[0].OrderNumber)
}

// sharedWriteFails lets every write through except the shared order list.
type sharedWriteFails struct {
	kv.Store
	fail bool
}

func (f *sharedWriteFails) Set(ctx context.Context, scope, key, value string) error {
	if f.fail && key == kv.KeyAdminOrders {
		return errors.New("disk full")
	}
	return f.Store.Set(ctx, scope, key, value)
}

func TestListStoreInsertFailureLeavesNothing(t *testing.T) {
	ctx := context.Background()
	backing := &sharedWriteFails{Store: kv.NewMemory()}
	store := NewListStore(backing)
	guest := "guest-9"

	require.NoError(t, store.Insert(ctx, &Order{OrderNumber: "000001", GuestToken: &guest, CreatedAt: placedAt}))

	backing.fail = true
	err := store.Insert(ctx, &Order{OrderNumber: "000002", GuestToken: &guest, CreatedAt: placedAt})
	require.Error(t, err)

	_, err = store.GetByNumber(ctx, "000002")
	assert.ErrorIs(t, err, ErrNotFound)

	// The owner index is back to what it was, so a later order reusing the
	// number is not attributed to this guest.
	raw, err := backing.Get(ctx, guest, kv.KeyOrders)
	require.NoError(t, err)
	assert.JSONEq(t, `["000001"]`, raw)

	backing.fail = false
	other := "guest-10"
	require.NoError(t, store.Insert(ctx, &Order{OrderNumber: "000002", GuestToken: &other, CreatedAt: placedAt}))

	mine, total, err := store.ListByGuest(ctx, guest, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "000001", mine[0].OrderNumber)
}

func TestListStorePayment(t *testing.T) {
	ctx := context.Background()
	store := NewListStore(kv.NewMemory())
	o, _, err := newTestBuilder(store, "424242").Create(ctx, sampleDraft())
	require.NoError(t, err)

	require.NoError(t, store.AttachPaymentReference(ctx, o.OrderNumber, "ref-1"))

	paid, err := store.MarkPaid(ctx, o.OrderNumber, "ref-1", placedAt.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, paid.Status)
	assert.Equal(t, PaymentStatusPaid, paid.PaymentStatus)

	again, err := store.MarkPaid(ctx, o.OrderNumber, "ref-1", placedAt.Add(2*time.Minute))
	require.NoError(t, err)
	require.NotNil(t, again.PaidAt)
	assert.True(t, paid.PaidAt.Equal(*again.PaidAt))

	_, err = store.MarkPaid(ctx, o.OrderNumber, "ref-other", placedAt)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	assert.ErrorIs(t, store.AttachPaymentReference(ctx, o.OrderNumber, "ref-2"), ErrNotFound)

	_, err = store.MarkPaid(ctx, "000000", "ref-1", placedAt)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListStoreExpireStalePayments(t *testing.T) {
	ctx := context.Background()
	store := NewListStore(kv.NewMemory())

	online, _, err := newTestBuilder(store, "100001").Create(ctx, sampleDraft())
	require.NoError(t, err)
	cod := sampleDraft()
	cod.PaymentType = PaymentOnDelivery
	_, _, err = newTestBuilder(store, "100002").Create(ctx, cod)
	require.NoError(t, err)

	n, err := store.ExpireStalePayments(ctx, placedAt)
	require.NoError(t, err)
	assert.Zero(t, n, "orders placed at the cutoff are not stale yet")

	n, err = store.ExpireStalePayments(ctx, placedAt.Add(31*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := store.GetByNumber(ctx, online.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusExpired, got.PaymentStatus)
	assert.Equal(t, StatusPending, got.Status)

	ov, err := store.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, ov.TotalOrders)
	assert.Equal(t, 2, ov.ByStatus[StatusPending])
	assert.Zero(t, ov.AwaitingPayment)
	assert.Equal(t, money.Amount(0), ov.PaidRevenue)
}

func TestListStoreSurvivesReload(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	o, _, err := newTestBuilder(NewListStore(mem), "555555").Create(ctx, sampleDraft())
	require.NoError(t, err)

	got, err := NewListStore(mem).GetByNumber(ctx, "555555")
	require.NoError(t, err)
	assert.Equal(t, o.TotalAmount, got.TotalAmount)
	assert.Equal(t, o.Lines, got.Lines)
	assert.True(t, o.CreatedAt.Equal(got.CreatedAt))
}

func TestListStoreDetachPaymentReference(t *testing.T) {
	ctx := context.Background()
	store := NewListStore(kv.NewMemory())

	o, _, err := newTestBuilder(store, "100003").Create(ctx, sampleDraft())
	require.NoError(t, err)

	require.NoError(t, store.AttachPaymentReference(ctx, o.OrderNumber, "ref-1"))
	require.NoError(t, store.AttachPaymentReference(ctx, o.OrderNumber, ""))

	got, err := store.GetByNumber(ctx, o.OrderNumber)
	require.NoError(t, err)
	assert.Nil(t, got.PaymentReference)
	assert.Equal(t, StatusPending, got.Status)
}
