package main

import (
	"net/http"
	"testing"

	"kicks/internal/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cartBody struct {
	Items []struct {
		ProductKey string `json:"product_key"`
		Variant    struct {
			Color string `json:"color"`
			Size  string `json:"size"`
		} `json:"variant"`
		Quantity int `json:"quantity"`
	} `json:"items"`
	Wishlist     []string     `json:"wishlist"`
	ItemCount    int          `json:"item_count"`
	Subtotal     money.Amount `json:"subtotal"`
	DeliveryFee  money.Amount `json:"delivery_fee"`
	Total        money.Amount `json:"total"`
	TotalDisplay string       `json:"total_display"`
}

func TestGuestTokenIssuedOnFirstVisit(t *testing.T) {
	ta := newTestApp(t)

	rr := ta.do(t, http.MethodGet, "/v1/store/cart", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	v := rr.Header().Get(guestHeader)
	require.NotEmpty(t, v)

	var found bool
	for _, c := range rr.Result().Cookies() {
		if c.Name == guestCookie {
			found = true
			assert.Equal(t, v, c.Value)
			assert.True(t, c.HttpOnly)
		}
	}
	assert.True(t, found, "guest cookie not set")

	// A known guest is not issued a new token.
	rr = ta.do(t, http.MethodGet, "/v1/store/cart", nil, withGuest(v))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get(guestHeader))
}

func TestTamperedGuestTokenIsReplaced(t *testing.T) {
	ta := newTestApp(t)
	guest := ta.newGuest(t)
	ta.addItem(t, guest, sneaker(1))

	rr := ta.do(t, http.MethodGet, "/v1/store/cart", nil, withGuest(guest+"x"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get(guestHeader))

	var cart cartBody
	decodeData(t, rr, &cart)
	assert.Zero(t, cart.ItemCount)
}

func TestGuestCartTotals(t *testing.T) {
	ta := newTestApp(t)
	guest := ta.newGuest(t)

	ta.addItem(t, guest, sneaker(2))
	ta.addItem(t, guest, sneaker(1))

	rr := ta.do(t, http.MethodGet, "/v1/store/cart?speed=express", nil, withGuest(guest))
	require.Equal(t, http.StatusOK, rr.Code)

	var cart cartBody
	decodeData(t, rr, &cart)

	require.Len(t, cart.Items, 1, "same variant merges into one line")
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, 3, cart.ItemCount)
	assert.Equal(t, money.FromMajor(360), cart.Subtotal)
	// 40 for 1-3 items plus 20 express.
	assert.Equal(t, money.FromMajor(60), cart.DeliveryFee)
	assert.Equal(t, money.FromMajor(420), cart.Total)
	assert.Equal(t, "GHS 420.00", cart.TotalDisplay)
}

func TestCartRejectsUnknownSpeed(t *testing.T) {
	ta := newTestApp(t)
	guest := ta.newGuest(t)

	rr := ta.do(t, http.MethodGet, "/v1/store/cart?speed=teleport", nil, withGuest(guest))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAddCartItemValidation(t *testing.T) {
	ta := newTestApp(t)
	guest := ta.newGuest(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"zero quantity", map[string]any{"product_key": "p1", "quantity": 0, "unit_price_display": "GHS 10"}},
		{"missing price", map[string]any{"product_key": "p1", "quantity": 1}},
		{"missing product", map[string]any{"quantity": 1, "unit_price_display": "GHS 10"}},
		{"unknown field", map[string]any{"product_key": "p1", "quantity": 1, "unit_price_display": "GHS 10", "discount": 5}},
		{"too many pairs", map[string]any{"product_key": "p1", "quantity": 100, "unit_price_display": "GHS 10"}},
		{"price without digits", map[string]any{"product_key": "p1", "quantity": 1, "unit_price_display": "free"}},
		{"zero price", map[string]any{"product_key": "p1", "quantity": 1, "unit_price_display": "GHS 0.00"}},
		{"price too large", map[string]any{"product_key": "p1", "quantity": 1, "unit_price_display": "GHS 99999999999999999999"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := ta.do(t, http.MethodPost, "/v1/store/cart/items", tc.body, withGuest(guest))
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, rr.Body.String(), `"success":false`)
		})
	}
}

func TestCartLineQuantityIsBounded(t *testing.T) {
	ta := newTestApp(t)
	guest := ta.newGuest(t)
	ta.addItem(t, guest, sneaker(1))

	key := map[string]any{"product_key": "air-max-90", "color": "white", "size": "42"}
	withQty := func(n any) map[string]any {
		body := map[string]any{"quantity": n}
		for k, v := range key {
			body[k] = v
		}
		return body
	}

	rr := ta.do(t, http.MethodPatch, "/v1/store/cart/items", withQty(int64(1)<<60), withGuest(guest))
	assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())

	rr = ta.do(t, http.MethodPatch, "/v1/store/cart/items", withQty(99), withGuest(guest))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	// Adding on top of a full line is refused rather than wrapping the totals.
	rr = ta.do(t, http.MethodPost, "/v1/store/cart/items", sneaker(1), withGuest(guest))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ta.do(t, http.MethodGet, "/v1/store/cart", nil, withGuest(guest))
	var cart cartBody
	decodeData(t, rr, &cart)
	assert.Equal(t, 99, cart.ItemCount)
	assert.Equal(t, money.FromMajor(99*120), cart.Subtotal)
	assert.Equal(t, cart.Subtotal.Add(cart.DeliveryFee), cart.Total)

	rr = ta.do(t, http.MethodPatch, "/v1/store/cart/items", withQty(-3), withGuest(guest))
	require.Equal(t, http.StatusOK, rr.Code)
	decodeData(t, rr, &cart)
	assert.Zero(t, cart.ItemCount)
}

func TestNumericProductKeyAccepted(t *testing.T) {
	ta := newTestApp(t)
	guest := ta.newGuest(t)

	ta.addItem(t, guest, map[string]any{"product_key": 1042, "quantity": 1, "unit_price_display": "GHS 99.50"})

	rr := ta.do(t, http.MethodGet, "/v1/store/cart", nil, withGuest(guest))
	var cart cartBody
	decodeData(t, rr, &cart)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "1042", cart.Items[0].ProductKey)
	assert.Equal(t, money.FromFloat(99.5), cart.Subtotal)
}

func TestUpdateAndRemoveCartItems(t *testing.T) {
	ta := newTestApp(t)
	guest := ta.newGuest(t)

	ta.addItem(t, guest, sneaker(1))
	other := sneaker(1)
	other["size"] = "43"
	ta.addItem(t, guest, other)

	t.Run("quantity", func(t *testing.T) {
		rr := ta.do(t, http.MethodPatch, "/v1/store/cart/items", map[string]any{
			"product_key": "air-max-90", "color": "white", "size": "42", "quantity": 4,
		}, withGuest(guest))
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var cart cartBody
		decodeData(t, rr, &cart)
		assert.Equal(t, 5, cart.ItemCount)
	})

	t.Run("variant change onto an existing line merges", func(t *testing.T) {
		rr := ta.do(t, http.MethodPatch, "/v1/store/cart/items", map[string]any{
			"product_key": "air-max-90", "color": "white", "size": "43",
			"variant": map[string]string{"color": "white", "size": "42"},
		}, withGuest(guest))
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var cart cartBody
		decodeData(t, rr, &cart)
		require.Len(t, cart.Items, 1)
		assert.Equal(t, 5, cart.Items[0].Quantity)
	})

	t.Run("missing line", func(t *testing.T) {
		rr := ta.do(t, http.MethodPatch, "/v1/store/cart/items", map[string]any{
			"product_key": "air-max-90", "size": "44", "quantity": 2,
		}, withGuest(guest))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("nothing to change", func(t *testing.T) {
		rr := ta.do(t, http.MethodPatch, "/v1/store/cart/items", map[string]any{
			"product_key": "air-max-90",
		}, withGuest(guest))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("remove all variants", func(t *testing.T) {
		ta.addItem(t, guest, other)

		rr := ta.do(t, http.MethodDelete, "/v1/store/cart/items", map[string]any{
			"product_key": "air-max-90", "all_variants": true,
		}, withGuest(guest))
		require.Equal(t, http.StatusOK, rr.Code)

		var cart cartBody
		decodeData(t, rr, &cart)
		assert.Empty(t, cart.Items)
	})
}

func TestRemoveSingleVariantKeepsOthers(t *testing.T) {
	ta := newTestApp(t)
	guest := ta.newGuest(t)

	ta.addItem(t, guest, sneaker(1))
	other := sneaker(2)
	other["color"] = "black"
	ta.addItem(t, guest, other)

	rr := ta.do(t, http.MethodDelete, "/v1/store/cart/items", map[string]any{
		"product_key": "air-max-90", "color": "black", "size": "42",
	}, withGuest(guest))
	require.Equal(t, http.StatusOK, rr.Code)

	var cart cartBody
	decodeData(t, rr, &cart)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "white", cart.Items[0].Variant.Color)
}

func TestClearCart(t *testing.T) {
	ta := newTestApp(t)
	guest := ta.newGuest(t)
	ta.addItem(t, guest, sneaker(3))

	rr := ta.do(t, http.MethodDelete, "/v1/store/cart", nil, withGuest(guest))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ta.do(t, http.MethodGet, "/v1/store/cart", nil, withGuest(guest))
	var cart cartBody
	decodeData(t, rr, &cart)
	assert.Zero(t, cart.ItemCount)
	assert.Equal(t, money.Amount(0), cart.Subtotal)
}

func TestWishlist(t *testing.T) {
	ta := newTestApp(t)
	guest := ta.newGuest(t)

	rr := ta.do(t, http.MethodPost, "/v1/store/wishlist", map[string]any{"product_key": "jordan-1"}, withGuest(guest))
	require.Contains(t, []int{http.StatusOK, http.StatusCreated}, rr.Code, rr.Body.String())

	rr = ta.do(t, http.MethodGet, "/v1/store/wishlist", nil, withGuest(guest))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "jordan-1")

	rr = ta.do(t, http.MethodDelete, "/v1/store/wishlist/jordan-1", nil, withGuest(guest))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ta.do(t, http.MethodGet, "/v1/store/wishlist", nil, withGuest(guest))
	assert.NotContains(t, rr.Body.String(), "jordan-1")
}

func TestDeliveryFeeEndpoint(t *testing.T) {
	ta := newTestApp(t)

	tests := []struct {
		query string
		code  int
		fee   money.Amount
		hours int
	}{
		{"items=5&speed=express", http.StatusOK, money.FromMajor(100), 24},
		{"items=0", http.StatusOK, 0, 72},
		{"items=25&speed=scheduled", http.StatusOK, money.FromMajor(10), 120},
		{"items=abc", http.StatusBadRequest, 0, 0},
		{"items=2&speed=drone", http.StatusBadRequest, 0, 0},
	}

	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			rr := ta.do(t, http.MethodGet, "/v1/store/delivery/fee?"+tc.query, nil)
			require.Equal(t, tc.code, rr.Code)
			if tc.code != http.StatusOK {
				return
			}

			var out deliveryFeeResponse
			decodeData(t, rr, &out)
			assert.Equal(t, tc.fee, out.Fee)
			assert.Equal(t, tc.hours, out.LeadTimeHours)
		})
	}
}
