package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kicks/internal/delivery"
	"kicks/internal/domain/carts"
	"kicks/internal/money"

	"go.uber.org/zap"
)

const maxNumberAttempts = 5

// Builder turns a checkout draft into a stored Order.
type Builder struct {
	store   Store
	numbers NumberGenerator
	now     func() time.Time
	logger  *zap.SugaredLogger
}

func NewBuilder(store Store, numbers NumberGenerator, logger *zap.SugaredLogger) *Builder {
	if numbers == nil {
		numbers = RandomNumbers{}
	}
	return &Builder{
		store:   store,
		numbers: numbers,
		now:     time.Now,
		logger:  logger,
	}
}

// WithClock replaces the builder's time source.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Create builds and stores an order from d. The second return value is true
// when d carried an idempotency key that had already produced an order, in
// which case that order is returned unchanged. The cart itself is never
// touched.
func (b *Builder) Create(ctx context.Context, d Draft) (*Order, bool, error) {
	if d.IdempotencyKey != "" {
		existing, err := b.store.GetByIdempotencyKey(ctx, d.IdempotencyKey)
		if err == nil {
			return existing, true, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, false, fmt.Errorf("lookup idempotency key: %w", err)
		}
	}

	o, err := b.draft(d)
	if err != nil {
		return nil, false, err
	}

	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		number, err := b.numbers.Next()
		if err != nil {
			return nil, false, err
		}
		o.OrderNumber = number

		err = b.store.Insert(ctx, o)
		switch {
		case err == nil:
			return o, false, nil
		case errors.Is(err, ErrDuplicateNumber):
			b.logger.Warnw("order number collision", "number", number, "attempt", attempt)
			continue
		case errors.Is(err, ErrDuplicateRequest):
			existing, gerr := b.store.GetByIdempotencyKey(ctx, d.IdempotencyKey)
			if gerr != nil {
				return nil, false, fmt.Errorf("load order for idempotency key: %w", gerr)
			}
			return existing, true, nil
		default:
			return nil, false, fmt.Errorf("insert order: %w", err)
		}
	}

	return nil, false, fmt.Errorf("%w: gave up after %d attempts", ErrDuplicateNumber, maxNumberAttempts)
}

// draft builds the order value without an order number.
func (b *Builder) draft(d Draft) (*Order, error) {
	if len(d.Cart) == 0 {
		return nil, ErrEmptyCart
	}

	ship, err := ResolveShipping(d.Form, d.RecipientMode)
	if err != nil {
		return nil, err
	}

	lines := snapshotLines(d.Cart)
	var subtotal money.Amount
	for _, l := range lines {
		subtotal = subtotal.Add(l.LineTotal)
	}
	total := subtotal.Add(d.DeliveryFee)
	if total == money.MaxAmount {
		return nil, ErrTotalOutOfRange
	}

	paymentType := d.PaymentType
	if paymentType != PaymentOnDelivery {
		paymentType = PaymentOnline
	}
	speed := d.Speed
	if speed == "" {
		speed = delivery.Standard
	}

	now := b.now().UTC()
	o := &Order{
		UserID:              d.UserID,
		Lines:               lines,
		Shipping:            ship,
		Subtotal:            subtotal,
		DeliveryFee:         d.DeliveryFee,
		TotalAmount:         total,
		DeliverySpeed:       speed,
		PaymentMethod:       d.PaymentMethod,
		PaymentType:         paymentType,
		PaymentStatus:       InitialPaymentStatus(paymentType),
		Status:              StatusPending,
		EstimatedDeliveryAt: now.Add(delivery.OrderLeadTime),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if d.GuestToken != "" && d.UserID == nil {
		token := d.GuestToken
		o.GuestToken = &token
	}
	if d.IdempotencyKey != "" {
		key := d.IdempotencyKey
		o.IdempotencyKey = &key
	}
	return o, nil
}

// snapshotLines deep-copies the cart. Unit prices are taken from the
// display string captured when the line was added.
func snapshotLines(in []carts.Line) []Line {
	out := make([]Line, 0, len(in))
	for _, l := range in {
		unit := l.UnitPrice()
		out = append(out, Line{
			ProductKey:       string(l.ProductKey),
			Color:            l.Variant.Color,
			Size:             l.Variant.Size,
			Quantity:         l.Quantity,
			UnitPriceDisplay: l.UnitPriceDisplay,
			UnitPrice:        unit,
			LineTotal:        unit.Mul(l.Quantity),
			Name:             l.Name,
			Image:            l.Image,
		})
	}
	return out
}

// ResolveShipping picks the recipient's name and phone from either the
// buyer's own fields or the recipient fields, never a mix of both.
func ResolveShipping(f ShippingForm, mode RecipientMode) (Shipping, error) {
	s := Shipping{
		RecipientMode: mode,
		Email:         strings.TrimSpace(f.Email),
		Address:       strings.TrimSpace(f.Address),
		City:          strings.TrimSpace(f.City),
		Region:        strings.TrimSpace(f.Region),
		Notes:         strings.TrimSpace(f.Notes),
	}

	switch mode {
	case RecipientSelf, "":
		s.RecipientMode = RecipientSelf
		s.Name = strings.TrimSpace(f.FullName)
		s.Phone = strings.TrimSpace(f.Phone)
	case RecipientOther:
		s.Name = strings.TrimSpace(f.RecipientName)
		s.Phone = strings.TrimSpace(f.RecipientPhone)
	default:
		return Shipping{}, fmt.Errorf("%w: unknown recipient mode %q", ErrInvalidShipping, mode)
	}

	if s.Name == "" || s.Phone == "" || s.Address == "" {
		return Shipping{}, fmt.Errorf("%w: name, phone and address are required", ErrInvalidShipping)
	}
	return s, nil
}
