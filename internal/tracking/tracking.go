// Package tracking derives the shopper-facing delivery timeline of an order.
// It is display logic only and never changes an order.
package tracking

import (
	"time"

	"kicks/internal/domain/orders"
)

const (
	StepPlaced          = "Placed"
	StepProcessing      = "Processing"
	StepOnRoute         = "On Route"
	StepDelivered       = "Delivered"
	StepPaymentReceived = "Payment Received"
)

type Step struct {
	Label string `json:"label"`
	// Threshold is the progress percentage at which the step completes.
	Threshold float64 `json:"threshold"`
	Completed bool    `json:"completed"`
}

type Timeline struct {
	Progress  float64 `json:"progress"`
	Cancelled bool    `json:"cancelled"`
	Steps     []Step  `json:"steps"`
}

type Input struct {
	CreatedAt           time.Time
	EstimatedDeliveryAt time.Time
	Now                 time.Time
	Status              orders.Status
	PaymentType         orders.PaymentType
	PaymentStatus       string
}

// FromOrder builds the tracker input for o at now.
func FromOrder(o *orders.Order, now time.Time) Input {
	return Input{
		CreatedAt:           o.CreatedAt,
		EstimatedDeliveryAt: o.EstimatedDeliveryAt,
		Now:                 now,
		Status:              o.Status,
		PaymentType:         o.PaymentType,
		PaymentStatus:       o.PaymentStatus,
	}
}

// Progress is the elapsed share of the delivery window as a percentage,
// clamped to [0, 100].
func Progress(createdAt, eta, now time.Time) float64 {
	window := eta.Sub(createdAt)
	if window <= 0 {
		if now.Before(eta) {
			return 0
		}
		return 100
	}

	p := float64(now.Sub(createdAt)) / float64(window)
	switch {
	case p < 0:
		p = 0
	case p > 1:
		p = 1
	}
	return p * 100
}

var (
	onlineSteps     = []Step{{Label: StepPlaced, Threshold: 0}, {Label: StepProcessing, Threshold: 33}, {Label: StepOnRoute, Threshold: 66}, {Label: StepDelivered, Threshold: 100}}
	onDeliverySteps = []Step{{Label: StepPlaced, Threshold: 0}, {Label: StepProcessing, Threshold: 25}, {Label: StepOnRoute, Threshold: 50}, {Label: StepDelivered, Threshold: 90}}
)

// Steps computes the timeline. A delivered order is shown at 100%; a
// cancelled one only has its Placed step completed.
func Steps(in Input) Timeline {
	progress := Progress(in.CreatedAt, in.EstimatedDeliveryAt, in.Now)
	if in.Status == orders.StatusDelivered {
		progress = 100
	}
	cancelled := in.Status == orders.StatusCancelled

	base := onlineSteps
	if in.PaymentType == orders.PaymentOnDelivery {
		base = onDeliverySteps
	}

	steps := make([]Step, 0, len(base)+1)
	for _, s := range base {
		s.Completed = progress >= s.Threshold
		if cancelled {
			s.Completed = s.Label == StepPlaced
		}
		steps = append(steps, s)
	}

	if in.PaymentType == orders.PaymentOnDelivery {
		steps = append(steps, Step{
			Label:     StepPaymentReceived,
			Threshold: 100,
			Completed: !cancelled && progress >= 100 && in.PaymentStatus == orders.PaymentStatusPaid,
		})
	}

	return Timeline{Progress: progress, Cancelled: cancelled, Steps: steps}
}
