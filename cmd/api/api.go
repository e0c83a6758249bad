package main

import (
	"context"
	"errors"
	"expvar"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kicks/internal/auth"
	"kicks/internal/delivery"
	"kicks/internal/domain/orders"
	"kicks/internal/domain/storage"
	"kicks/internal/events"
	"kicks/internal/mailer"
	"kicks/internal/payments"
	"kicks/internal/ratelimiter"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type application struct {
	config        config
	store         *storage.Container
	logger        *zap.SugaredLogger
	mailer        mailer.Client
	authenticator auth.Authenticator
	rateLimiter   ratelimiter.Limiter
	payments      *payments.PaymentManager
	events        events.Publisher
	orders        *orders.Builder
	delivery      delivery.Policy
	guests        *guestCodec
	now           func() time.Time
}

type config struct {
	addr        string
	env         string
	apiURL      string
	frontendURL string
	db          dbConfig
	storage     storage.Options
	mail        mailConfig
	auth        authConfig
	rateLimiter ratelimiter.Config
	shop        shopConfig
	paystack    paystackConfig
	rabbitURL   string
}

type authConfig struct {
	basic basicConfig
	token tokenConfig
	// guestSecret signs the guest_token cookie.
	guestSecret string
}

type tokenConfig struct {
	refreshSecret   string
	secret          string
	accessTokenExp  time.Duration
	refreshTokenExp time.Duration
	iss             string
	aud             string
}

type basicConfig struct {
	user string
	pass string
}

type mailConfig struct {
	smtp mailer.SMTPConfig
}

type dbConfig struct {
	addr         string
	maxOpenConns int32
	maxIdleTime  string
}

type shopConfig struct {
	currencyPrefix     string
	deliveryPolicyFile string
	mergeCartOnLogin   bool
	// paymentTimeout is how long an online order may wait for its payment
	// before it is marked expired.
	paymentTimeout time.Duration
}

type paystackConfig struct {
	secret      string
	callbackURL string
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{app.config.frontendURL},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", guestHeader},
		ExposedHeaders:   []string{guestHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Use(app.RateLimiterMiddleware)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.With(app.BasicAuthMiddleware()).Get("/health", app.healthCheckHandler)
		r.With(app.BasicAuthMiddleware()).Get("/debug/vars", expvar.Handler().ServeHTTP)

		r.Route("/store", func(r chi.Router) {
			r.Get("/delivery/fee", app.deliveryFeeHandler)

			// Shopper routes work for guests and signed-in users alike.
			r.Group(func(r chi.Router) {
				r.Use(app.OptionalAuthMiddleware)
				r.Use(app.ShopperMiddleware)

				r.Route("/cart", func(r chi.Router) {
					r.Get("/", app.getCartHandler)
					r.Delete("/", app.clearCartHandler)
					r.Post("/items", app.addCartItemHandler)
					r.Patch("/items", app.updateCartItemHandler)
					r.Delete("/items", app.removeCartItemHandler)
				})

				r.Route("/wishlist", func(r chi.Router) {
					r.Get("/", app.getWishlistHandler)
					r.Post("/", app.addWishlistHandler)
					r.Delete("/{productKey}", app.removeWishlistHandler)
				})

				r.Post("/checkout", app.checkoutHandler)

				r.Route("/orders", func(r chi.Router) {
					r.Get("/", app.listMyOrdersHandler)
					r.Get("/{orderNumber}", app.getMyOrderHandler)
					r.Get("/{orderNumber}/tracking", app.trackOrderHandler)
				})

				r.Route("/payments", func(r chi.Router) {
					r.Post("/callback", app.paymentCallbackHandler)
					r.Post("/cancel", app.paymentCancelHandler)
				})
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(app.AuthTokenMiddleware)
				r.Use(app.RequireAdmin)

				r.Get("/dashboard", app.adminDashboardHandler)
				r.Get("/orders", app.adminListOrdersHandler)
				r.Get("/orders/{orderNumber}", app.adminGetOrderHandler)
				r.Patch("/orders/{orderNumber}/status", app.adminUpdateOrderStatusHandler)
			})
		})

		r.Route("/authentication", func(r chi.Router) {
			r.Post("/user", app.registerUserHandler)
			r.With(app.GuestMiddleware).Post("/token", app.createTokenHandler)
			r.Post("/refresh", app.refreshTokenHandler)
			r.With(app.AuthTokenMiddleware).Post("/logout", app.logoutHandler)
		})
	})

	return r
}

func (app *application) run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: time.Second * 30,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Infow("signal caught", "signal", s.String())

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Infow("server has started", "addr", app.config.addr, "env", app.config.env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", app.config.addr, "env", app.config.env)

	return nil
}
