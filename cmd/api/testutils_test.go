package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"kicks/internal/auth"
	"kicks/internal/delivery"
	"kicks/internal/domain/orders"
	"kicks/internal/domain/storage"
	"kicks/internal/events"
	"kicks/internal/mailer"
	"kicks/internal/money"
	"kicks/internal/payments"
	"kicks/internal/ratelimiter"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeGateway confirms whatever amount was initiated for a reference unless
// the test set another outcome for it.
type fakeGateway struct {
	mu        sync.Mutex
	initiated map[string]money.Amount
	states    map[string]string
	// newState is the outcome given to every attempt started from now on.
	newState string
	currency string
	failInit bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{initiated: map[string]money.Amount{}, states: map[string]string{}, currency: "GHS"}
}

func (g *fakeGateway) InitiatePayment(_ context.Context, req payments.PaymentRequest) (payments.PaymentResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failInit {
		return payments.PaymentResponse{}, payments.ErrGatewayNotRegistered
	}
	g.initiated[req.Reference] = req.Amount
	if g.newState != "" {
		g.states[req.Reference] = g.newState
	}
	return payments.PaymentResponse{
		PaymentURL: "https://checkout.test/" + req.Reference,
		Reference:  req.Reference,
	}, nil
}

func (g *fakeGateway) setState(reference, state string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.states[reference] = state
}

func (g *fakeGateway) attempts() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.initiated)
}

func (g *fakeGateway) VerifyPayment(_ context.Context, req payments.PaymentVerifyRequest) (payments.PaymentVerifyResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	amount, ok := g.initiated[req.Reference]
	if !ok {
		return payments.PaymentVerifyResponse{State: "abandoned", Terminal: true}, nil
	}

	switch state := g.states[req.Reference]; state {
	case "", "success":
	case "ongoing":
		return payments.PaymentVerifyResponse{State: state}, nil
	default:
		return payments.PaymentVerifyResponse{State: state, Terminal: true}, nil
	}
	return payments.PaymentVerifyResponse{
		Success:  true,
		State:    "success",
		Terminal: true,
		Amount:   amount,
		Currency: g.currency,
	}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

type testApp struct {
	*application
	mock      pgxmock.PgxPoolIface
	gateway   *fakeGateway
	published *recordingPublisher
	handler   http.Handler
}

// newTestApp wires the API against in-memory guest carts and document
// orders. Anything that reaches Postgres goes to the returned mock.
func newTestApp(t *testing.T) *testApp {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	logger := zap.NewNop().Sugar()

	store, err := storage.NewContainer(mock, storage.Options{
		KVDriver:   storage.KVMemory,
		OrderStore: storage.OrdersDocument,
	}, logger)
	require.NoError(t, err)

	gateway := newFakeGateway()
	pm := payments.NewPaymentManager()
	pm.RegisterGateway("paystack", gateway)

	published := &recordingPublisher{}

	cfg := config{
		env:         "test",
		frontendURL: "http://localhost:3000",
		auth: authConfig{
			basic:       basicConfig{user: "admin", pass: "admin"},
			token:       tokenConfig{secret: "access", refreshSecret: "refresh", iss: "Kicks", aud: "Kicks", accessTokenExp: time.Hour, refreshTokenExp: time.Hour},
			guestSecret: "guest-secret",
		},
		rateLimiter: ratelimiter.Config{RequestsPerTimeFrame: 100, TimeFrame: time.Second},
		shop: shopConfig{
			currencyPrefix:   "GHS ",
			mergeCartOnLogin: true,
			paymentTimeout:   30 * time.Minute,
		},
	}

	app := &application{
		config:        cfg,
		store:         store,
		logger:        logger,
		mailer:        mailer.Nop{},
		authenticator: auth.NewJWTAuthenticator("access", "refresh", "Kicks", "Kicks", time.Hour, time.Hour),
		rateLimiter:   ratelimiter.NewFixedWindowLimiter(100, time.Second),
		payments:      pm,
		events:        published,
		orders:        orders.NewBuilder(store.Orders, nil, logger),
		delivery:      delivery.DefaultPolicy(),
		guests:        newGuestCodec(cfg.auth.guestSecret, false),
		now:           time.Now,
	}

	return &testApp{
		application: app,
		mock:        mock,
		gateway:     gateway,
		published:   published,
		handler:     app.mount(),
	}
}

type reqOpt func(*http.Request)

func withGuest(v string) reqOpt {
	return func(r *http.Request) { r.Header.Set(guestHeader, v) }
}

func withBearer(token string) reqOpt {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withHeader(k, v string) reqOpt {
	return func(r *http.Request) { r.Header.Set(k, v) }
}

func (ta *testApp) do(t *testing.T, method, path string, body any, opts ...reqOpt) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, o := range opts {
		o(req)
	}

	rr := httptest.NewRecorder()
	ta.handler.ServeHTTP(rr, req)
	return rr
}

// decodeData unwraps the {"data": ...} envelope into dst.
func decodeData(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()

	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

// newGuest asks the API for a fresh guest identity.
func (ta *testApp) newGuest(t *testing.T) string {
	t.Helper()

	rr := ta.do(t, http.MethodGet, "/v1/store/cart", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	v := rr.Header().Get(guestHeader)
	require.NotEmpty(t, v)
	return v
}

func (ta *testApp) addItem(t *testing.T, guest string, body map[string]any) {
	t.Helper()

	rr := ta.do(t, http.MethodPost, "/v1/store/cart/items", body, withGuest(guest))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}

func sneaker(qty int) map[string]any {
	return map[string]any{
		"product_key":        "air-max-90",
		"color":              "white",
		"size":               "42",
		"quantity":           qty,
		"unit_price_display": "GHS 120.00",
		"name":               "Air Max 90",
	}
}
