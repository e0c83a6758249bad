package orders

import (
	"context"
	"fmt"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
}

// CanTransition reports whether an order may move from one status to
// another. Delivered and cancelled are terminal.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition applies an explicit admin status change.
func Transition(ctx context.Context, store Store, number string, to Status, opts UpdateStatusOpts) (*Order, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}

	o, err := store.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	if opts.PaymentReceived && o.PaymentType != PaymentOnDelivery {
		return nil, fmt.Errorf("%w: payment received only applies to pay-on-delivery orders", ErrInvalidTransition)
	}

	return store.UpdateStatus(ctx, number, o.Status, to, opts)
}
