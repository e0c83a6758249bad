package orders

import (
	"context"
	"errors"
	"time"

	"kicks/internal/delivery"
	"kicks/internal/domain/carts"
	"kicks/internal/money"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrDuplicateNumber   = errors.New("order number already taken")
	ErrDuplicateRequest  = errors.New("order already created for this idempotency key")
	ErrEmptyCart         = errors.New("cannot place an order for an empty cart")
	ErrInvalidTransition = errors.New("order status transition not allowed")
	ErrInvalidShipping   = errors.New("invalid shipping details")
	ErrTotalOutOfRange   = errors.New("order total is out of range")
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

type PaymentType string

const (
	PaymentOnline     PaymentType = "online"
	PaymentOnDelivery PaymentType = "onDelivery"
)

// Payment statuses are display strings shown to shoppers as-is.
const (
	PaymentStatusOnDelivery = "Pay on Delivery"
	PaymentStatusProcessing = "Processing Payment"
	PaymentStatusPaid       = "paid"
	PaymentStatusExpired    = "Payment Expired"
)

// InitialPaymentStatus is the payment status a new order starts with.
func InitialPaymentStatus(t PaymentType) string {
	if t == PaymentOnDelivery {
		return PaymentStatusOnDelivery
	}
	return PaymentStatusProcessing
}

type RecipientMode string

const (
	RecipientSelf  RecipientMode = "self"
	RecipientOther RecipientMode = "other"
)

// Line is a cart line frozen at checkout. It never references the live cart.
type Line struct {
	ProductKey       string       `json:"product_key"`
	Color            string       `json:"color,omitempty"`
	Size             string       `json:"size,omitempty"`
	Quantity         int          `json:"quantity"`
	UnitPriceDisplay string       `json:"unit_price_display"`
	UnitPrice        money.Amount `json:"unit_price"`
	LineTotal        money.Amount `json:"line_total"`
	Name             string       `json:"name,omitempty"`
	Image            string       `json:"image,omitempty"`
}

// Shipping is the resolved recipient of an order.
type Shipping struct {
	RecipientMode RecipientMode `json:"recipient_mode"`
	Name          string        `json:"name"`
	Phone         string        `json:"phone"`
	Email         string        `json:"email,omitempty"`
	Address       string        `json:"address"`
	City          string        `json:"city,omitempty"`
	Region        string        `json:"region,omitempty"`
	Notes         string        `json:"notes,omitempty"`
}

// ShippingForm is the raw checkout form. The buyer's own name and phone are
// always filled in; the recipient fields only count in RecipientOther mode.
type ShippingForm struct {
	FullName       string
	Phone          string
	Email          string
	Address        string
	City           string
	Region         string
	Notes          string
	RecipientName  string
	RecipientPhone string
}

type Order struct {
	ID                  int64          `json:"id"`
	OrderNumber         string         `json:"order_number"`
	UserID              *int64         `json:"user_id,omitempty"`
	GuestToken          *string        `json:"guest_token,omitempty"`
	IdempotencyKey      *string        `json:"idempotency_key,omitempty"`
	Lines               []Line         `json:"lines"`
	Shipping            Shipping       `json:"shipping"`
	Subtotal            money.Amount   `json:"subtotal"`
	DeliveryFee         money.Amount   `json:"delivery_fee"`
	TotalAmount         money.Amount   `json:"total_amount"`
	DeliverySpeed       delivery.Speed `json:"delivery_speed"`
	PaymentMethod       string         `json:"payment_method"`
	PaymentType         PaymentType    `json:"payment_type"`
	PaymentStatus       string         `json:"payment_status"`
	PaymentReference    *string        `json:"payment_reference,omitempty"`
	PaidAt              *time.Time     `json:"paid_at,omitempty"`
	Status              Status         `json:"status"`
	CancelledReason     *string        `json:"cancelled_reason,omitempty"`
	EstimatedDeliveryAt time.Time      `json:"estimated_delivery_at"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// OwnedBy reports whether the order belongs to the given user or guest.
func (o *Order) OwnedBy(userID *int64, guestToken string) bool {
	if userID != nil && o.UserID != nil && *o.UserID == *userID {
		return true
	}
	return guestToken != "" && o.GuestToken != nil && *o.GuestToken == guestToken
}

// Draft is everything the checkout step hands to the Builder.
type Draft struct {
	Cart          []carts.Line
	DeliveryFee   money.Amount
	Speed         delivery.Speed
	Form          ShippingForm
	RecipientMode RecipientMode
	PaymentType   PaymentType
	PaymentMethod string

	UserID         *int64
	GuestToken     string
	IdempotencyKey string
}

type UpdateStatusOpts struct {
	CancelledReason *string
	// PaymentReceived marks a pay-on-delivery order as paid, typically
	// together with the move to delivered.
	PaymentReceived bool
}

// Overview is the admin dashboard summary.
type Overview struct {
	TotalOrders     int            `json:"total_orders"`
	ByStatus        map[Status]int `json:"by_status"`
	PaidRevenue     money.Amount   `json:"paid_revenue"`
	AwaitingPayment int            `json:"awaiting_payment"`
}

type Store interface {
	// Insert stores a new order. It fails with ErrDuplicateNumber when the
	// order number is taken and ErrDuplicateRequest when the idempotency key
	// was already used.
	Insert(ctx context.Context, o *Order) error

	GetByNumber(ctx context.Context, number string) (*Order, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*Order, error)

	// USER-facing
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]Order, int, error)
	ListByGuest(ctx context.Context, guestToken string, limit, offset int) ([]Order, int, error)

	// ADMIN-facing
	ListAll(ctx context.Context, status Status, limit, offset int) ([]Order, int, error)
	// UpdateStatus moves the order from -> to. It fails with
	// ErrInvalidTransition when the order is no longer in from.
	UpdateStatus(ctx context.Context, number string, from, to Status, opts UpdateStatusOpts) (*Order, error)
	Overview(ctx context.Context) (*Overview, error)

	// Payments
	// AttachPaymentReference records the reference of the payment attempt in
	// flight. An empty reference detaches it. Paid orders report ErrNotFound.
	AttachPaymentReference(ctx context.Context, number, reference string) error
	MarkPaid(ctx context.Context, number, reference string, at time.Time) (*Order, error)
	ExpireStalePayments(ctx context.Context, placedBefore time.Time) (int64, error)
}
