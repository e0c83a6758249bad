package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kicks/internal/delivery"
	"kicks/internal/infra/dbx"
	"kicks/internal/money"

	"github.com/jackc/pgx/v5"
)

const (
	numberConstraint      = "orders_order_number_key"
	idempotencyConstraint = "orders_idempotency_key_key"
)

const orderColumns = `id, order_number, user_id, guest_token, idempotency_key, lines, shipping,
       subtotal_minor, delivery_fee_minor, total_minor, delivery_speed,
       payment_method, payment_type, payment_status, payment_reference, paid_at,
       status, cancelled_reason, estimated_delivery_at, created_at, updated_at`

// Repository is the Postgres order store.
type Repository struct {
	q dbx.Querier
}

func NewRepository(q dbx.Querier) *Repository {
	return &Repository{q: q}
}

func scanOrder(row pgx.Row, extra ...any) (*Order, error) {
	var (
		o                           Order
		lines, ship                 []byte
		subtotal, fee, total        int64
		speed, ptype, pstatus, stat string
	)
	dest := []any{
		&o.ID, &o.OrderNumber, &o.UserID, &o.GuestToken, &o.IdempotencyKey, &lines, &ship,
		&subtotal, &fee, &total, &speed,
		&o.PaymentMethod, &ptype, &pstatus, &o.PaymentReference, &o.PaidAt,
		&stat, &o.CancelledReason, &o.EstimatedDeliveryAt, &o.CreatedAt, &o.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(lines, &o.Lines); err != nil {
		return nil, fmt.Errorf("decode order lines: %w", err)
	}
	if err := json.Unmarshal(ship, &o.Shipping); err != nil {
		return nil, fmt.Errorf("decode shipping: %w", err)
	}
	o.Subtotal = money.Amount(subtotal)
	o.DeliveryFee = money.Amount(fee)
	o.TotalAmount = money.Amount(total)
	o.DeliverySpeed = delivery.Speed(speed)
	o.PaymentType = PaymentType(ptype)
	o.PaymentStatus = pstatus
	o.Status = Status(stat)
	return &o, nil
}

func (r *Repository) Insert(ctx context.Context, o *Order) error {
	lines, err := json.Marshal(o.Lines)
	if err != nil {
		return fmt.Errorf("encode order lines: %w", err)
	}
	ship, err := json.Marshal(o.Shipping)
	if err != nil {
		return fmt.Errorf("encode shipping: %w", err)
	}

	err = r.q.QueryRow(ctx, `
INSERT INTO orders (
  order_number, user_id, guest_token, idempotency_key, lines, shipping,
  subtotal_minor, delivery_fee_minor, total_minor, delivery_speed,
  payment_method, payment_type, payment_status, status,
  estimated_delivery_at, created_at, updated_at
) VALUES (
  $1, $2, $3, $4, $5::jsonb, $6::jsonb,
  $7, $8, $9, $10,
  $11, $12, $13, $14,
  $15, $16, $16
)
RETURNING id
`,
		o.OrderNumber, o.UserID, o.GuestToken, o.IdempotencyKey, string(lines), string(ship),
		int64(o.Subtotal), int64(o.DeliveryFee), int64(o.TotalAmount), string(o.DeliverySpeed),
		o.PaymentMethod, string(o.PaymentType), o.PaymentStatus, string(o.Status),
		o.EstimatedDeliveryAt, o.CreatedAt,
	).Scan(&o.ID)
	if err != nil {
		if constraint, ok := dbx.UniqueViolation(err); ok {
			if constraint == idempotencyConstraint {
				return ErrDuplicateRequest
			}
			return ErrDuplicateNumber
		}
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (r *Repository) getOne(ctx context.Context, where string, arg any) (*Order, error) {
	o, err := scanOrder(r.q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func (r *Repository) GetByNumber(ctx context.Context, number string) (*Order, error) {
	return r.getOne(ctx, "order_number = $1", number)
}

func (r *Repository) GetByIdempotencyKey(ctx context.Context, key string) (*Order, error) {
	return r.getOne(ctx, "idempotency_key = $1", key)
}

func clampPage(limit, offset, def int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = def
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (r *Repository) list(ctx context.Context, where string, args []any, limit, offset int) ([]Order, int, error) {
	n := len(args)
	q := fmt.Sprintf(`
SELECT %s,
       COUNT(*) OVER() AS total_count
FROM orders
WHERE %s
ORDER BY created_at DESC
LIMIT $%d OFFSET $%d`, orderColumns, where, n+1, n+2)

	rows, err := r.q.Query(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var (
		out   []Order
		total int
	)
	for rows.Next() {
		var t int
		o, err := scanOrder(rows, &t)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		if total == 0 {
			total = t
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]Order, int, error) {
	limit, offset = clampPage(limit, offset, 20)
	return r.list(ctx, "user_id = $1", []any{userID}, limit, offset)
}

func (r *Repository) ListByGuest(ctx context.Context, guestToken string, limit, offset int) ([]Order, int, error) {
	limit, offset = clampPage(limit, offset, 20)
	return r.list(ctx, "guest_token = $1", []any{guestToken}, limit, offset)
}

// ListAll: admin, optional status filter, default limit is 30
func (r *Repository) ListAll(ctx context.Context, status Status, limit, offset int) ([]Order, int, error) {
	limit, offset = clampPage(limit, offset, 30)

	where := "1=1"
	args := []any{}
	if status != "" {
		where += " AND status = $1"
		args = append(args, string(status))
	}
	return r.list(ctx, where, args, limit, offset)
}

func (r *Repository) UpdateStatus(ctx context.Context, number string, from, to Status, opts UpdateStatusOpts) (*Order, error) {
	o, err := scanOrder(r.q.QueryRow(ctx, `
UPDATE orders
SET status           = $3,
    cancelled_reason = CASE WHEN $3 = 'cancelled' THEN $4 ELSE cancelled_reason END,
    payment_status   = CASE WHEN $5::boolean THEN 'paid' ELSE payment_status END,
    paid_at          = CASE WHEN $5::boolean THEN now() ELSE paid_at END,
    updated_at       = now()
WHERE order_number = $1 AND status = $2
RETURNING `+orderColumns,
		number, string(from), string(to), opts.CancelledReason, opts.PaymentReceived,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}
	return o, nil
}

func (r *Repository) AttachPaymentReference(ctx context.Context, number, reference string) error {
	tag, err := r.q.Exec(ctx, `
UPDATE orders
SET payment_reference = NULLIF($2, ''),
    updated_at        = now()
WHERE order_number = $1 AND payment_status <> 'paid'
`, number, reference)
	if err != nil {
		return fmt.Errorf("attach payment reference: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkPaid records a verified payment: the order moves to processing and
// its payment status to paid. Repeating the call with the same reference
// returns the paid order.
func (r *Repository) MarkPaid(ctx context.Context, number, reference string, at time.Time) (*Order, error) {
	o, err := scanOrder(r.q.QueryRow(ctx, `
UPDATE orders
SET status            = 'processing',
    payment_status    = 'paid',
    payment_reference = $2,
    paid_at           = $3,
    updated_at        = now()
WHERE order_number = $1 AND status = 'pending' AND payment_status <> 'paid'
RETURNING `+orderColumns,
		number, reference, at,
	))
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("mark order paid: %w", err)
	}

	current, err := r.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	return alreadyPaid(current, reference)
}

func alreadyPaid(o *Order, reference string) (*Order, error) {
	if o.PaymentStatus == PaymentStatusPaid && o.PaymentReference != nil && *o.PaymentReference == reference {
		return o, nil
	}
	return nil, fmt.Errorf("%w: order %s is %s/%s", ErrInvalidTransition, o.OrderNumber, o.Status, o.PaymentStatus)
}

func (r *Repository) ExpireStalePayments(ctx context.Context, placedBefore time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `
UPDATE orders
SET payment_status = $1,
    updated_at     = now()
WHERE payment_type = $2
  AND status = $3
  AND payment_status = $4
  AND created_at < $5
`, PaymentStatusExpired, string(PaymentOnline), string(StatusPending), PaymentStatusProcessing, placedBefore)
	if err != nil {
		return 0, fmt.Errorf("expire stale payments: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) Overview(ctx context.Context) (*Overview, error) {
	rows, err := r.q.Query(ctx, `
SELECT status,
       COUNT(*),
       COALESCE(SUM(total_minor) FILTER (WHERE payment_status = 'paid'), 0),
       COUNT(*) FILTER (WHERE payment_status = 'Processing Payment')
FROM orders
GROUP BY status
`)
	if err != nil {
		return nil, fmt.Errorf("orders overview: %w", err)
	}
	defer rows.Close()

	ov := &Overview{ByStatus: map[Status]int{}}
	for rows.Next() {
		var (
			status        string
			count, unpaid int
			revenue       int64
		)
		if err := rows.Scan(&status, &count, &revenue, &unpaid); err != nil {
			return nil, fmt.Errorf("scan overview: %w", err)
		}
		ov.ByStatus[Status(status)] = count
		ov.TotalOrders += count
		ov.PaidRevenue += money.Amount(revenue)
		ov.AwaitingPayment += unpaid
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ov, nil
}
