package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"kicks/internal/delivery"
	"kicks/internal/domain/orders"
	"kicks/internal/events"
	"kicks/internal/mailer"
	"kicks/internal/payments"

	"github.com/google/uuid"
)

const (
	defaultOnlineMethod     = "paystack"
	defaultOnDeliveryMethod = "cash"
	idempotencyHeader       = "Idempotency-Key"
)

type checkoutPayload struct {
	FullName       string `json:"full_name" validate:"required,max=100"`
	Phone          string `json:"phone" validate:"required,ghphone"`
	Email          string `json:"email" validate:"omitempty,email,max=255"`
	Address        string `json:"address" validate:"required,max=255"`
	City           string `json:"city" validate:"max=100"`
	Region         string `json:"region" validate:"max=100"`
	Notes          string `json:"notes" validate:"max=500"`
	RecipientMode  string `json:"recipient_mode" validate:"omitempty,oneof=self other"`
	RecipientName  string `json:"recipient_name" validate:"max=100"`
	RecipientPhone string `json:"recipient_phone" validate:"omitempty,ghphone"`
	DeliverySpeed  string `json:"delivery_speed" validate:"omitempty,oneof=standard express scheduled"`
	PaymentType    string `json:"payment_type" validate:"required,oneof=online onDelivery"`
	PaymentMethod  string `json:"payment_method" validate:"max=50"`
}

type paymentSession struct {
	Method    string `json:"method"`
	Reference string `json:"reference"`
	// PaymentURL is empty when an attempt already in progress is handed back.
	PaymentURL string `json:"payment_url,omitempty"`
	State      string `json:"state,omitempty"`
}

type checkoutResponse struct {
	Order   *orders.Order   `json:"order"`
	Payment *paymentSession `json:"payment,omitempty"`
}

// POST /v1/store/checkout
//
// Places an order from the shopper's current cart. Replaying the same
// Idempotency-Key returns the order created the first time. The cart is only
// cleared once the order is settled: right away for pay on delivery, after a
// verified payment for online orders.
func (app *application) checkoutHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	var in checkoutPayload
	if err := readJSON(w, r, &in); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := validate(in); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	who := shopperFrom(r)
	if in.Email == "" {
		if user := getUserFromContext(r); user != nil {
			in.Email = user.Email
		}
	}

	paymentType := orders.PaymentType(in.PaymentType)
	method := strings.TrimSpace(in.PaymentMethod)
	if paymentType == orders.PaymentOnline {
		if method == "" {
			method = defaultOnlineMethod
		}
		if !app.payments.Has(method) {
			app.badRequestResponse(w, r, fmt.Errorf("unsupported payment method %q", method))
			return
		}
		if in.Email == "" {
			app.badRequestResponse(w, r, errors.New("email is required for online payment"))
			return
		}
	} else if method == "" {
		method = defaultOnDeliveryMethod
	}

	speed, err := delivery.ParseSpeed(in.DeliverySpeed)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	cart, err := app.openCart(ctx, r)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	order, existing, err := app.orders.Create(ctx, orders.Draft{
		Cart:        cart.Lines(),
		DeliveryFee: app.delivery.Fee(cart.TotalItemCount(), speed),
		Speed:       speed,
		Form: orders.ShippingForm{
			FullName:       in.FullName,
			Phone:          in.Phone,
			Email:          in.Email,
			Address:        in.Address,
			City:           in.City,
			Region:         in.Region,
			Notes:          in.Notes,
			RecipientName:  in.RecipientName,
			RecipientPhone: in.RecipientPhone,
		},
		RecipientMode:  orders.RecipientMode(in.RecipientMode),
		PaymentType:    paymentType,
		PaymentMethod:  method,
		UserID:         who.userID,
		GuestToken:     who.guestToken,
		IdempotencyKey: strings.TrimSpace(r.Header.Get(idempotencyHeader)),
	})
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	if existing && !order.OwnedBy(who.userID, who.guestToken) {
		app.storeErrorResponse(w, r, orders.ErrDuplicateRequest)
		return
	}

	status := http.StatusCreated
	if existing {
		status = http.StatusOK
		app.logger.Infow("checkout replayed", "order", order.OrderNumber)
	} else {
		app.publishOrderEvent(ctx, events.OrderPlaced, order)
		app.mailOrder(mailer.OrderConfirmationTemplate, order)

		if order.PaymentType == orders.PaymentOnDelivery {
			if err := cart.ClearCart(ctx); err != nil {
				app.logger.Warnw("cart not cleared after pay-on-delivery order", "order", order.OrderNumber, "error", err)
			}
		}
	}

	resp := checkoutResponse{Order: order}
	if awaitingPayment(order) && existing && order.PaymentReference != nil {
		settled, session, err := app.resumePayment(ctx, order)
		switch {
		case errors.Is(err, errPaymentMismatch):
			app.conflictResponse(w, r, err)
			return
		case err != nil:
			app.logger.Errorw("payment check failed", "order", order.OrderNumber, "error", err)
			writeJSONError(w, http.StatusBadGateway, "order "+order.OrderNumber+" has a payment we could not check, please retry")
			return
		}
		resp.Order = settled
		resp.Payment = session
	}

	if resp.Payment == nil && awaitingPayment(resp.Order) {
		session, err := app.startPayment(ctx, resp.Order)
		if err != nil {
			// The order stands; the shopper can retry payment with the same key.
			app.logger.Errorw("payment init failed", "order", order.OrderNumber, "error", err)
			writeJSONError(w, http.StatusBadGateway, "order "+order.OrderNumber+" was placed but payment could not be started, please retry")
			return
		}
		resp.Payment = session
	}

	app.jsonResponse(w, status, resp)
}

func awaitingPayment(o *orders.Order) bool {
	return o.PaymentType == orders.PaymentOnline && o.Status == orders.StatusPending && o.PaymentStatus != orders.PaymentStatusPaid
}

// resumePayment handles a replayed online checkout whose order already has an
// attempt attached. A successful attempt settles the order. An attempt the
// gateway may still complete is handed back as is. Only an attempt that ended
// without paying returns a nil session, letting a new one replace it.
func (app *application) resumePayment(ctx context.Context, o *orders.Order) (*orders.Order, *paymentSession, error) {
	reference := *o.PaymentReference

	verified, err := app.verifyAttempt(ctx, o, reference)
	if err != nil {
		return nil, nil, err
	}

	switch {
	case verified.Success:
		paid, err := app.completePayment(ctx, o, reference, verified)
		if err != nil {
			return nil, nil, err
		}
		return paid, nil, nil
	case !verified.Terminal:
		return o, &paymentSession{Method: o.PaymentMethod, Reference: reference, State: verified.State}, nil
	}

	app.logger.Infow("replacing failed payment attempt", "order", o.OrderNumber, "reference", reference, "state", verified.State)
	return o, nil, nil
}

// startPayment opens a new payment attempt for o and records its reference.
func (app *application) startPayment(ctx context.Context, o *orders.Order) (*paymentSession, error) {
	reference := fmt.Sprintf("%s-%s", o.OrderNumber, uuid.NewString()[:8])

	resp, err := app.payments.InitiatePayment(ctx, o.PaymentMethod, payments.PaymentRequest{
		Reference:   reference,
		Amount:      o.TotalAmount,
		Currency:    paymentCurrency,
		Email:       o.Shipping.Email,
		Description: "Order " + o.OrderNumber,
		CallbackURL: app.config.paystack.callbackURL,
		Metadata: map[string]string{
			"order_number": o.OrderNumber,
		},
	})
	if err != nil {
		return nil, err
	}
	if resp.Reference != "" {
		reference = resp.Reference
	}

	if err := app.store.Orders.AttachPaymentReference(ctx, o.OrderNumber, reference); err != nil {
		return nil, fmt.Errorf("attach payment reference: %w", err)
	}

	return &paymentSession{
		Method:     o.PaymentMethod,
		Reference:  reference,
		PaymentURL: resp.PaymentURL,
	}, nil
}
