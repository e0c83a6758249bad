package main

import (
	"context"
	"time"
)

// expirePendingPayments marks online orders whose payment never arrived
// within the configured timeout. It runs once at startup and then on every
// tick until ctx is done.
func (app *application) expirePendingPayments(ctx context.Context, every time.Duration) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			app.expireOnce(ctx)

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (app *application) expireOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cutoff := app.now().Add(-app.config.shop.paymentTimeout)
	n, err := app.store.Orders.ExpireStalePayments(ctx, cutoff)
	if err != nil {
		app.logger.Errorw("expiring stale payments", "error", err)
		return
	}
	if n > 0 {
		app.logger.Infow("expired stale payments", "count", n, "placed_before", cutoff.Format(time.RFC3339))
	}
}
