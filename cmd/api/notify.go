package main

import (
	"context"
	"time"

	"kicks/internal/domain/orders"
	"kicks/internal/events"
	"kicks/internal/money"
)

// publishOrderEvent never fails the request: the order is already stored.
func (app *application) publishOrderEvent(ctx context.Context, eventType string, o *orders.Order) {
	if err := app.events.Publish(ctx, events.OrderEvent(eventType, o)); err != nil {
		app.logger.Errorw("publish order event", "event", eventType, "order", o.OrderNumber, "error", err)
	}
}

type mailLine struct {
	Name      string
	Color     string
	Size      string
	Quantity  int
	LineTotal string
}

type orderMail struct {
	Name              string
	OrderNumber       string
	Lines             []mailLine
	Subtotal          string
	DeliveryFee       string
	Total             string
	PaymentStatus     string
	EstimatedDelivery string
	Status            string
	Reason            string
}

func (app *application) orderMailData(o *orders.Order) orderMail {
	prefix := app.config.shop.currencyPrefix

	lines := make([]mailLine, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, mailLine{
			Name:      l.Name,
			Color:     l.Color,
			Size:      l.Size,
			Quantity:  l.Quantity,
			LineTotal: money.Format(l.LineTotal, prefix),
		})
	}

	data := orderMail{
		Name:              o.Shipping.Name,
		OrderNumber:       o.OrderNumber,
		Lines:             lines,
		Subtotal:          money.Format(o.Subtotal, prefix),
		DeliveryFee:       money.Format(o.DeliveryFee, prefix),
		Total:             money.Format(o.TotalAmount, prefix),
		PaymentStatus:     o.PaymentStatus,
		EstimatedDelivery: o.EstimatedDeliveryAt.Format("Mon 2 Jan"),
		Status:            string(o.Status),
	}
	if o.CancelledReason != nil {
		data.Reason = *o.CancelledReason
	}
	return data
}

// mailOrder sends templateFile to the order's contact address in the
// background. Orders without an email address are skipped.
func (app *application) mailOrder(templateFile string, o *orders.Order) {
	if o.Shipping.Email == "" {
		return
	}
	data := app.orderMailData(o)

	go func() {
		start := time.Now()
		status, err := app.mailer.Send(templateFile, data.Name, o.Shipping.Email, data)
		if err != nil {
			app.logger.Errorw("error sending order email", "template", templateFile, "order", o.OrderNumber, "error", err)
			return
		}
		app.logger.Infow("email sent", "template", templateFile, "order", o.OrderNumber, "status code", status, "took", time.Since(start))
	}()
}
