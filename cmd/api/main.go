package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"os"
	"runtime"
	"strconv"
	"time"

	"kicks/internal/auth"
	"kicks/internal/db"
	"kicks/internal/delivery"
	"kicks/internal/domain/orders"
	"kicks/internal/domain/storage"
	"kicks/internal/events"
	"kicks/internal/mailer"
	"kicks/internal/payments"
	"kicks/internal/ratelimiter"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoadRateLimiterConfig retrieves rate limiter settings from environment variables
func LoadRateLimiterConfig() ratelimiter.Config {
	defaultRequests := 200
	defaultEnabled := false

	requestsPerTimeFrame := defaultRequests
	if val, exists := os.LookupEnv("RATELIMITER_REQUESTS_COUNT"); exists {
		if parsedVal, err := strconv.Atoi(val); err == nil {
			requestsPerTimeFrame = parsedVal
		} else {
			fmt.Println("Invalid RATELIMITER_REQUESTS_COUNT, defaulting to", defaultRequests)
		}
	}

	enabled := defaultEnabled
	if val, exists := os.LookupEnv("RATE_LIMITER_ENABLED"); exists {
		if parsedVal, err := strconv.ParseBool(val); err == nil {
			enabled = parsedVal
		} else {
			fmt.Println("Invalid RATE_LIMITER_ENABLED, defaulting to", defaultEnabled)
		}
	}

	return ratelimiter.Config{
		RequestsPerTimeFrame: requestsPerTimeFrame,
		TimeFrame:            5 * time.Second,
		Enabled:              enabled,
	}
}

// NewLogger creates a new zap logger with color.
func NewLogger() (*zap.SugaredLogger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(encoderCfg)
	core := zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), zapcore.InfoLevel)

	return zap.New(core).Sugar(), nil
}

func getString(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		log.Fatalf("Invalid value for %s: %v", key, err)
	}
	return n
}

func getBool(key string, fallback bool) bool {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		log.Fatalf("Invalid value for %s: %v", key, err)
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		log.Fatalf("Invalid value for %s: %v", key, err)
	}
	return d
}

var version = "0.1.0"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg := config{
		addr:        getString("ADDR", ":8080"),
		env:         getString("ENV", "development"),
		frontendURL: getString("FRONTEND_URL", "http://localhost:3000"),
		apiURL:      getString("EXTERNAL_URL", "localhost:8080"),
		db: dbConfig{
			addr:         os.Getenv("DB_ADDR"),
			maxOpenConns: int32(getInt("DB_MAX_CONNS", 30)),
			maxIdleTime:  getString("DB_MAX_IDLE_TIME", "15m"),
		},
		storage: storage.Options{
			KVDriver:   getString("KV_DRIVER", storage.KVPostgres),
			OrderStore: getString("ORDER_STORE", storage.OrdersTable),
		},
		mail: mailConfig{
			smtp: mailer.SMTPConfig{
				Host:      os.Getenv("SMTP_HOST"),
				Port:      getInt("SMTP_PORT", 587),
				Username:  os.Getenv("SMTP_USER"),
				Password:  os.Getenv("SMTP_PASS"),
				FromEmail: os.Getenv("MAIL_FROM"),
			},
		},
		auth: authConfig{
			basic: basicConfig{
				user: os.Getenv("AUTH_BASIC_USER"),
				pass: os.Getenv("AUTH_BASIC_PASS"),
			},
			token: tokenConfig{
				refreshSecret:   os.Getenv("AUTH_TOKEN_REFRESH_SECRET"),
				secret:          os.Getenv("AUTH_TOKEN_SECRET"),
				accessTokenExp:  time.Hour * 24,     // 1 day
				refreshTokenExp: time.Hour * 24 * 9, // 9 days
				iss:             "Kicks",
				aud:             "Kicks",
			},
			guestSecret: os.Getenv("GUEST_COOKIE_SECRET"),
		},
		rateLimiter: LoadRateLimiterConfig(),
		shop: shopConfig{
			currencyPrefix:     getString("CURRENCY_PREFIX", "GHS "),
			deliveryPolicyFile: os.Getenv("DELIVERY_POLICY_FILE"),
			mergeCartOnLogin:   getBool("CART_MERGE_ON_LOGIN", true),
			paymentTimeout:     getDuration("PAYMENT_PENDING_TIMEOUT", 30*time.Minute),
		},
		paystack: paystackConfig{
			secret:      os.Getenv("PAYSTACK_SECRET_KEY"),
			callbackURL: os.Getenv("PAYSTACK_CALLBACK_URL"),
		},
		rabbitURL: os.Getenv("RABBITMQ_URL"),
	}

	logger, err := NewLogger()
	if err != nil {
		fmt.Println("Error creating logger:", err)
		return
	}
	defer logger.Sync()

	if cfg.auth.guestSecret == "" {
		logger.Fatal("GUEST_COOKIE_SECRET must be set")
	}

	// Database
	pool, err := db.New(db.Config{
		Addr:         cfg.db.addr,
		MaxOpenConns: cfg.db.maxOpenConns,
		MaxIdleTime:  cfg.db.maxIdleTime,
	})
	if err != nil {
		logger.Fatal(err)
	}
	defer pool.Close()
	logger.Info("database connection pool established")

	if err := db.RunMigrations(cfg.db.addr, logger); err != nil {
		logger.Fatal(err)
	}

	// Storage
	store, err := storage.NewContainer(pool, cfg.storage, logger)
	if err != nil {
		logger.Fatal(err)
	}

	policy := delivery.DefaultPolicy()
	if cfg.shop.deliveryPolicyFile != "" {
		policy, err = delivery.LoadPolicy(cfg.shop.deliveryPolicyFile)
		if err != nil {
			logger.Fatal(err)
		}
		logger.Infow("delivery policy loaded", "file", cfg.shop.deliveryPolicyFile)
	}

	// Payments
	paymentManager := payments.NewPaymentManager()
	if cfg.paystack.secret != "" {
		paymentManager.RegisterGateway("paystack", payments.NewPaystackAdapter(cfg.paystack.secret, cfg.paystack.callbackURL))
	} else {
		logger.Warn("PAYSTACK_SECRET_KEY not set, online payments disabled")
	}

	// Events
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.rabbitURL != "" {
		rabbit, err := events.NewRabbitPublisher(cfg.rabbitURL)
		if err != nil {
			logger.Fatal(err)
		}
		defer rabbit.Close()
		publisher = rabbit
		logger.Info("rabbitmq publisher connected")
	}

	// Mail
	var mail mailer.Client = mailer.Nop{}
	if cfg.mail.smtp.Host != "" {
		smtp, err := mailer.NewSMTPMailer(cfg.mail.smtp)
		if err != nil {
			logger.Fatal(err)
		}
		mail = smtp
	}

	// Rate limiter
	rateLimiter := ratelimiter.NewFixedWindowLimiter(
		cfg.rateLimiter.RequestsPerTimeFrame,
		cfg.rateLimiter.TimeFrame,
	)

	// Authenticator
	jwtAuthenticator := auth.NewJWTAuthenticator(
		cfg.auth.token.secret,
		cfg.auth.token.refreshSecret,
		cfg.auth.token.aud,
		cfg.auth.token.iss,
		cfg.auth.token.accessTokenExp,
		cfg.auth.token.refreshTokenExp,
	)

	app := &application{
		config:        cfg,
		store:         store,
		logger:        logger,
		mailer:        mail,
		authenticator: jwtAuthenticator,
		rateLimiter:   rateLimiter,
		payments:      paymentManager,
		events:        publisher,
		orders:        orders.NewBuilder(store.Orders, nil, logger),
		delivery:      policy,
		guests:        newGuestCodec(cfg.auth.guestSecret, cfg.env == "production"),
		now:           time.Now,
	}

	//Metrics collected http://localhost:8080/v1/debug/vars
	expvar.NewString("version").Set(version)
	expvar.Publish("database", expvar.Func(func() any {
		s := pool.Stat()
		return map[string]int32{
			"total_conns":    s.TotalConns(),
			"idle_conns":     s.IdleConns(),
			"acquired_conns": s.AcquiredConns(),
		}
	}))
	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app.expirePendingPayments(ctx, time.Minute)

	mux := app.mount()

	logger.Fatal(app.run(mux))
}
