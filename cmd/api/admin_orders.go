package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"kicks/internal/domain/orders"
	"kicks/internal/events"
	"kicks/internal/mailer"
	"kicks/internal/money"
	"kicks/internal/params"

	"github.com/go-chi/chi/v5"
)

// AdminUpdateOrderStatusRequest is the PATCH body.
type AdminUpdateOrderStatusRequest struct {
	Status          string  `json:"status" validate:"required,oneof=pending processing shipped delivered cancelled"`
	CancelledReason *string `json:"cancelled_reason,omitempty" validate:"omitempty,max=500"`
	// PaymentReceived records cash collected on a pay-on-delivery order.
	PaymentReceived bool `json:"payment_received"`
}

// GET /v1/store/admin/orders?status=&page=&limit=
func (app *application) adminListOrdersHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	status := orders.Status(strings.TrimSpace(r.URL.Query().Get("status")))
	p := params.ParsePagination(r.URL.Query())

	if status != "" && !status.Valid() {
		app.badRequestResponse(w, r, fmt.Errorf("invalid status %q", status))
		return
	}

	list, total, err := app.store.Orders.ListAll(ctx, status, p.Limit, p.Offset)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	p.ComputeMeta(total)

	app.jsonResponse(w, http.StatusOK, map[string]any{
		"orders":     list,
		"pagination": p,
		"status":     status,
	})
}

// GET /v1/store/admin/orders/{orderNumber}
func (app *application) adminGetOrderHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	o, err := app.store.Orders.GetByNumber(ctx, chi.URLParam(r, "orderNumber"))
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, o)
}

// PATCH /v1/store/admin/orders/{orderNumber}/status
func (app *application) adminUpdateOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	var in AdminUpdateOrderStatusRequest
	if err := readJSON(w, r, &in); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := validate(in); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	to := orders.Status(in.Status)
	if to != orders.StatusCancelled {
		in.CancelledReason = nil
	}

	o, err := orders.Transition(ctx, app.store.Orders, chi.URLParam(r, "orderNumber"), to, orders.UpdateStatusOpts{
		CancelledReason: in.CancelledReason,
		PaymentReceived: in.PaymentReceived,
	})
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	app.logger.Infow("order status updated", "order", o.OrderNumber, "status", o.Status, "by", getUserFromContext(r).ID)
	app.publishOrderEvent(ctx, events.OrderStatusChanged, o)
	app.mailOrder(mailer.OrderStatusTemplate, o)

	app.jsonResponse(w, http.StatusOK, o)
}

// GET /v1/store/admin/dashboard
func (app *application) adminDashboardHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	overview, err := app.store.Orders.Overview(ctx)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	recent, _, err := app.store.Orders.ListAll(ctx, "", 5, 0)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, map[string]any{
		"overview":             overview,
		"paid_revenue_display": money.Format(overview.PaidRevenue, app.config.shop.currencyPrefix),
		"recent_orders":        recent,
	})
}
