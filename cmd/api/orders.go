package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"kicks/internal/domain/orders"
	"kicks/internal/params"
	"kicks/internal/tracking"

	"github.com/go-chi/chi/v5"
)

// loadOwnOrder fetches the order named in the URL and hides orders that
// belong to someone else behind a not found.
func (app *application) loadOwnOrder(ctx context.Context, r *http.Request) (*orders.Order, error) {
	number := strings.TrimSpace(chi.URLParam(r, "orderNumber"))
	return app.ownOrder(ctx, r, number)
}

func (app *application) ownOrder(ctx context.Context, r *http.Request, number string) (*orders.Order, error) {
	if number == "" {
		return nil, orders.ErrNotFound
	}

	o, err := app.store.Orders.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}

	who := shopperFrom(r)
	if !o.OwnedBy(who.userID, who.guestToken) {
		return nil, orders.ErrNotFound
	}
	return o, nil
}

// GET /v1/store/orders?page=1&limit=15
func (app *application) listMyOrdersHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	p := params.ParsePagination(r.URL.Query())
	who := shopperFrom(r)

	var (
		list  []orders.Order
		total int
		err   error
	)
	if who.userID != nil {
		list, total, err = app.store.Orders.ListByUser(ctx, *who.userID, p.Limit, p.Offset)
	} else {
		list, total, err = app.store.Orders.ListByGuest(ctx, who.guestToken, p.Limit, p.Offset)
	}
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	p.ComputeMeta(total)

	app.jsonResponse(w, http.StatusOK, map[string]any{
		"orders":     list,
		"pagination": p,
	})
}

// GET /v1/store/orders/{orderNumber}
func (app *application) getMyOrderHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := app.loadOwnOrder(ctx, r)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, o)
}

type trackingResponse struct {
	OrderNumber         string        `json:"order_number"`
	Status              orders.Status `json:"status"`
	PaymentStatus       string        `json:"payment_status"`
	EstimatedDeliveryAt time.Time     `json:"estimated_delivery_at"`
	tracking.Timeline
}

// GET /v1/store/orders/{orderNumber}/tracking
func (app *application) trackOrderHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := app.loadOwnOrder(ctx, r)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, trackingResponse{
		OrderNumber:         o.OrderNumber,
		Status:              o.Status,
		PaymentStatus:       o.PaymentStatus,
		EstimatedDeliveryAt: o.EstimatedDeliveryAt,
		Timeline:            tracking.Steps(tracking.FromOrder(o, app.now())),
	})
}
