package main

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"kicks/internal/delivery"
	"kicks/internal/money"
)

type deliveryFeeResponse struct {
	Items         int            `json:"items"`
	Speed         delivery.Speed `json:"speed"`
	Fee           money.Amount   `json:"fee"`
	FeeDisplay    string         `json:"fee_display"`
	LeadTimeHours int            `json:"lead_time_hours"`
}

// GET /v1/store/delivery/fee?items=5&speed=express
func (app *application) deliveryFeeHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	items := 0
	if raw := strings.TrimSpace(q.Get("items")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			app.badRequestResponse(w, r, fmt.Errorf("invalid items %q", raw))
			return
		}
		items = n
	}

	speed, err := delivery.ParseSpeed(q.Get("speed"))
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	fee := app.delivery.Fee(items, speed)
	app.jsonResponse(w, http.StatusOK, deliveryFeeResponse{
		Items:         max(items, 0),
		Speed:         speed,
		Fee:           fee,
		FeeDisplay:    money.Format(fee, app.config.shop.currencyPrefix),
		LeadTimeHours: int(delivery.LeadTime(speed).Hours()),
	})
}
