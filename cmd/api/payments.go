package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"kicks/internal/domain/carts"
	"kicks/internal/domain/orders"
	"kicks/internal/domain/storage"
	"kicks/internal/events"
	"kicks/internal/payments"
)

// paymentCurrency is what every online payment is started and settled in.
const paymentCurrency = "GHS"

var errPaymentMismatch = errors.New("payment does not match the order")

type paymentCallbackPayload struct {
	OrderNumber string `json:"order_number" validate:"required,len=6,numeric"`
	Reference   string `json:"reference" validate:"required,max=100"`
}

// POST /v1/store/payments/callback
//
// Called by the client when the payment widget reports success. The
// reference is never trusted on its own: it must be the attempt attached to
// the order and the gateway must confirm the full amount.
func (app *application) paymentCallbackHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	var in paymentCallbackPayload
	if err := readJSON(w, r, &in); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := validate(in); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	o, err := app.ownOrder(ctx, r, in.OrderNumber)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	if o.PaymentStatus == orders.PaymentStatusPaid {
		if o.PaymentReference != nil && *o.PaymentReference == in.Reference {
			app.jsonResponse(w, http.StatusOK, o)
			return
		}
		app.conflictResponse(w, r, fmt.Errorf("order %s is already paid", o.OrderNumber))
		return
	}
	if o.PaymentReference == nil || *o.PaymentReference != in.Reference {
		app.badRequestResponse(w, r, fmt.Errorf("%w: unknown payment reference", errPaymentMismatch))
		return
	}

	verified, err := app.verifyAttempt(ctx, o, in.Reference)
	if err != nil {
		if errors.Is(err, errPaymentMismatch) {
			app.badRequestResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}
	if !verified.Success {
		if !verified.Terminal {
			app.jsonResponse(w, http.StatusAccepted, map[string]string{
				"message": "payment is still being processed",
				"state":   verified.State,
			})
			return
		}
		app.badRequestResponse(w, r, fmt.Errorf("payment was not completed: %s", verified.State))
		return
	}

	paid, err := app.completePayment(ctx, o, in.Reference, verified)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, paid)
}

// verifyAttempt asks the gateway how reference ended. A successful payment
// must cover the order total in the currency it was started in, otherwise
// errPaymentMismatch is returned.
func (app *application) verifyAttempt(ctx context.Context, o *orders.Order, reference string) (payments.PaymentVerifyResponse, error) {
	verified, err := app.payments.VerifyPayment(ctx, o.PaymentMethod, payments.PaymentVerifyRequest{Reference: reference})
	if err != nil {
		return verified, fmt.Errorf("verify payment: %w", err)
	}
	if !verified.Success {
		return verified, nil
	}

	if verified.Amount != o.TotalAmount {
		app.logger.Errorw("payment amount mismatch", "order", o.OrderNumber, "expected", o.TotalAmount, "got", verified.Amount)
		return verified, fmt.Errorf("%w: amount", errPaymentMismatch)
	}
	if !strings.EqualFold(verified.Currency, paymentCurrency) {
		app.logger.Errorw("payment currency mismatch", "order", o.OrderNumber, "expected", paymentCurrency, "got", verified.Currency)
		return verified, fmt.Errorf("%w: currency", errPaymentMismatch)
	}
	return verified, nil
}

// completePayment settles a verified attempt and announces it.
func (app *application) completePayment(ctx context.Context, o *orders.Order, reference string, verified payments.PaymentVerifyResponse) (*orders.Order, error) {
	paidAt := app.now()
	if verified.PaidAt != nil {
		paidAt = *verified.PaidAt
	}

	paid, err := app.settlePayment(ctx, o, reference, paidAt)
	if err != nil {
		return nil, err
	}

	app.publishOrderEvent(ctx, events.OrderPaid, paid)
	return paid, nil
}

// settlePayment marks o paid and empties the buyer's cart. For signed-in
// buyers both happen in one transaction; a guest cart lives in the kv store
// and is cleared after the order is saved.
func (app *application) settlePayment(ctx context.Context, o *orders.Order, reference string, paidAt time.Time) (*orders.Order, error) {
	var paid *orders.Order

	err := app.store.WithSalesTx(ctx, func(s *storage.SalesTx) error {
		var err error
		paid, err = s.Orders.MarkPaid(ctx, o.OrderNumber, reference, paidAt)
		if err != nil {
			return err
		}
		if o.UserID == nil {
			return nil
		}

		cart, err := carts.Open(ctx, s.UserCart(*o.UserID), app.logger)
		if err != nil {
			return err
		}
		return cart.ClearCart(ctx)
	})
	if err != nil {
		return nil, err
	}

	if o.UserID == nil && o.GuestToken != nil {
		cart, err := carts.Open(ctx, app.store.GuestCart(*o.GuestToken), app.logger)
		if err == nil {
			err = cart.ClearCart(ctx)
		}
		if err != nil {
			app.logger.Warnw("guest cart not cleared after payment", "order", o.OrderNumber, "error", err)
		}
	}

	return paid, nil
}

// POST /v1/store/payments/cancel
//
// The shopper closed the payment widget. The order stays pending and the
// abandoned attempt's reference is dropped.
func (app *application) paymentCancelHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var in struct {
		OrderNumber string `json:"order_number" validate:"required,len=6,numeric"`
	}
	if err := readJSON(w, r, &in); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := validate(in); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	o, err := app.ownOrder(ctx, r, strings.TrimSpace(in.OrderNumber))
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}
	if o.PaymentStatus == orders.PaymentStatusPaid {
		app.conflictResponse(w, r, fmt.Errorf("order %s is already paid", o.OrderNumber))
		return
	}

	if err := app.store.Orders.AttachPaymentReference(ctx, o.OrderNumber, ""); err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}
	o.PaymentReference = nil

	app.jsonResponse(w, http.StatusOK, map[string]any{
		"message": "payment cancelled, your order is still pending",
		"order":   o,
	})
}
