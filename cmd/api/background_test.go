package main

import (
	"context"
	"net/http"
	"testing"
	"time"

	"kicks/internal/domain/orders"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpireOnce(t *testing.T) {
	ta := newTestApp(t)
	guest := ta.newGuest(t)

	ta.addItem(t, guest, sneaker(1))
	online := ta.checkout(t, guest, checkoutForm("online")).Order
	ta.addItem(t, guest, sneaker(1))
	cash := ta.checkout(t, guest, checkoutForm("onDelivery")).Order

	ta.expireOnce(context.Background())
	o, err := ta.store.Orders.GetByNumber(context.Background(), online.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentStatusProcessing, o.PaymentStatus, "still inside the timeout")

	ta.now = func() time.Time { return time.Now().Add(time.Hour) }
	ta.expireOnce(context.Background())

	rr := ta.do(t, http.MethodGet, "/v1/store/orders/"+online.OrderNumber, nil, withGuest(guest))
	require.Equal(t, http.StatusOK, rr.Code)
	decodeData(t, rr, o)
	assert.Equal(t, orders.PaymentStatusExpired, o.PaymentStatus)
	assert.Equal(t, orders.StatusPending, o.Status)

	o, err = ta.store.Orders.GetByNumber(context.Background(), cash.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentStatusOnDelivery, o.PaymentStatus)
}
