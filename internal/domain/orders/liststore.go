package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"kicks/internal/kv"
)

// sharedScope holds the storefront-wide order collection in the kv store.
const sharedScope = "storefront"

// ListStore keeps every order in one JSON document under kv.KeyAdminOrders,
// and each owner's order numbers under kv.KeyOrders in the owner's scope.
// Writes read the whole document, modify it and write it back while holding
// the store's mutex, so appends never lose an earlier order as long as this
// process is the only writer.
type ListStore struct {
	mu  sync.Mutex
	kv  kv.Store
	now func() time.Time
}

func NewListStore(store kv.Store) *ListStore {
	return &ListStore{kv: store, now: time.Now}
}

func userScope(id int64) string {
	return fmt.Sprintf("user:%d", id)
}

func ownerScope(o *Order) string {
	if o.UserID != nil {
		return userScope(*o.UserID)
	}
	if o.GuestToken != nil {
		return *o.GuestToken
	}
	return ""
}

func (s *ListStore) readJSON(ctx context.Context, scope, key string, dst any) error {
	raw, err := s.kv.Get(ctx, scope, key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *ListStore) writeJSON(ctx context.Context, scope, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.kv.Set(ctx, scope, key, string(raw))
}

func (s *ListStore) all(ctx context.Context) ([]Order, error) {
	var list []Order
	if err := s.readJSON(ctx, sharedScope, kv.KeyAdminOrders, &list); err != nil {
		return nil, fmt.Errorf("read orders: %w", err)
	}
	return list, nil
}

func (s *ListStore) Insert(ctx context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.all(ctx)
	if err != nil {
		return err
	}
	var maxID int64
	for _, existing := range list {
		if existing.OrderNumber == o.OrderNumber {
			return ErrDuplicateNumber
		}
		if o.IdempotencyKey != nil && existing.IdempotencyKey != nil && *existing.IdempotencyKey == *o.IdempotencyKey {
			return ErrDuplicateRequest
		}
		if existing.ID > maxID {
			maxID = existing.ID
		}
	}

	o.ID = maxID + 1

	// The owner index goes first so a stored order is always listed for its
	// owner. It is restored if the shared list cannot be written.
	scope := ownerScope(o)
	var numbers []string
	if scope != "" {
		if err := s.readJSON(ctx, scope, kv.KeyOrders, &numbers); err != nil {
			return fmt.Errorf("read owner orders: %w", err)
		}
		if err := s.writeJSON(ctx, scope, kv.KeyOrders, append(numbers[:len(numbers):len(numbers)], o.OrderNumber)); err != nil {
			return fmt.Errorf("write owner orders: %w", err)
		}
	}

	list = append(list, *o)
	if err := s.writeJSON(ctx, sharedScope, kv.KeyAdminOrders, list); err != nil {
		if scope != "" {
			if rerr := s.writeJSON(ctx, scope, kv.KeyOrders, numbers); rerr != nil {
				return fmt.Errorf("write orders: %w (owner index not restored: %v)", err, rerr)
			}
		}
		return fmt.Errorf("write orders: %w", err)
	}
	return nil
}

func (s *ListStore) find(ctx context.Context, match func(*Order) bool) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if match(&list[i]) {
			o := list[i]
			return &o, nil
		}
	}
	return nil, ErrNotFound
}

func (s *ListStore) GetByNumber(ctx context.Context, number string) (*Order, error) {
	return s.find(ctx, func(o *Order) bool { return o.OrderNumber == number })
}

func (s *ListStore) GetByIdempotencyKey(ctx context.Context, key string) (*Order, error) {
	return s.find(ctx, func(o *Order) bool { return o.IdempotencyKey != nil && *o.IdempotencyKey == key })
}

// page sorts newest first and slices out one page.
func page(list []Order, limit, offset int) ([]Order, int) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	total := len(list)
	if offset >= total {
		return []Order{}, total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return list[offset:end], total
}

func (s *ListStore) listScope(ctx context.Context, scope string, limit, offset int) ([]Order, int, error) {
	limit, offset = clampPage(limit, offset, 20)

	s.mu.Lock()
	defer s.mu.Unlock()

	var numbers []string
	if err := s.readJSON(ctx, scope, kv.KeyOrders, &numbers); err != nil {
		return nil, 0, fmt.Errorf("read owner orders: %w", err)
	}
	mine := make(map[string]bool, len(numbers))
	for _, n := range numbers {
		mine[n] = true
	}

	list, err := s.all(ctx)
	if err != nil {
		return nil, 0, err
	}
	out := make([]Order, 0, len(numbers))
	for _, o := range list {
		if mine[o.OrderNumber] {
			out = append(out, o)
		}
	}
	res, total := page(out, limit, offset)
	return res, total, nil
}

func (s *ListStore) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]Order, int, error) {
	return s.listScope(ctx, userScope(userID), limit, offset)
}

func (s *ListStore) ListByGuest(ctx context.Context, guestToken string, limit, offset int) ([]Order, int, error) {
	return s.listScope(ctx, guestToken, limit, offset)
}

func (s *ListStore) ListAll(ctx context.Context, status Status, limit, offset int) ([]Order, int, error) {
	limit, offset = clampPage(limit, offset, 30)

	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.all(ctx)
	if err != nil {
		return nil, 0, err
	}
	out := make([]Order, 0, len(list))
	for _, o := range list {
		if status == "" || o.Status == status {
			out = append(out, o)
		}
	}
	res, total := page(out, limit, offset)
	return res, total, nil
}

// update applies fn to the order with the given number and writes the list
// back if fn returns nil.
func (s *ListStore) update(ctx context.Context, number string, fn func(*Order) error) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].OrderNumber != number {
			continue
		}
		if err := fn(&list[i]); err != nil {
			return nil, err
		}
		list[i].UpdatedAt = s.now().UTC()
		if err := s.writeJSON(ctx, sharedScope, kv.KeyAdminOrders, list); err != nil {
			return nil, fmt.Errorf("write orders: %w", err)
		}
		o := list[i]
		return &o, nil
	}
	return nil, ErrNotFound
}

func (s *ListStore) UpdateStatus(ctx context.Context, number string, from, to Status, opts UpdateStatusOpts) (*Order, error) {
	return s.update(ctx, number, func(o *Order) error {
		if o.Status != from {
			return ErrInvalidTransition
		}
		o.Status = to
		if to == StatusCancelled {
			o.CancelledReason = opts.CancelledReason
		}
		if opts.PaymentReceived {
			at := s.now().UTC()
			o.PaymentStatus = PaymentStatusPaid
			o.PaidAt = &at
		}
		return nil
	})
}

func (s *ListStore) AttachPaymentReference(ctx context.Context, number, reference string) error {
	_, err := s.update(ctx, number, func(o *Order) error {
		if o.PaymentStatus == PaymentStatusPaid {
			return ErrNotFound
		}
		o.PaymentReference = nil
		if reference != "" {
			o.PaymentReference = &reference
		}
		return nil
	})
	return err
}

func (s *ListStore) MarkPaid(ctx context.Context, number, reference string, at time.Time) (*Order, error) {
	var repeat *Order
	o, err := s.update(ctx, number, func(o *Order) error {
		if o.Status != StatusPending || o.PaymentStatus == PaymentStatusPaid {
			cp := *o
			repeat = &cp
			return ErrInvalidTransition
		}
		o.Status = StatusProcessing
		o.PaymentStatus = PaymentStatusPaid
		o.PaymentReference = &reference
		paid := at.UTC()
		o.PaidAt = &paid
		return nil
	})
	if repeat != nil {
		return alreadyPaid(repeat, reference)
	}
	return o, err
}

func (s *ListStore) ExpireStalePayments(ctx context.Context, placedBefore time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.all(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	for i := range list {
		o := &list[i]
		if o.PaymentType == PaymentOnline && o.Status == StatusPending &&
			o.PaymentStatus == PaymentStatusProcessing && o.CreatedAt.Before(placedBefore) {
			o.PaymentStatus = PaymentStatusExpired
			o.UpdatedAt = s.now().UTC()
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	if err := s.writeJSON(ctx, sharedScope, kv.KeyAdminOrders, list); err != nil {
		return 0, fmt.Errorf("write orders: %w", err)
	}
	return n, nil
}

func (s *ListStore) Overview(ctx context.Context) (*Overview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	ov := &Overview{ByStatus: map[Status]int{}}
	for _, o := range list {
		ov.TotalOrders++
		ov.ByStatus[o.Status]++
		if o.PaymentStatus == PaymentStatusPaid {
			ov.PaidRevenue += o.TotalAmount
		}
		if o.PaymentStatus == PaymentStatusProcessing {
			ov.AwaitingPayment++
		}
	}
	return ov, nil
}
