package payments

import (
	"errors"
	"time"

	"kicks/internal/money"
)

var ErrGatewayNotRegistered = errors.New("payment gateway not registered")

type PaymentRequest struct {
	// Reference is our transaction reference; the provider echoes it back.
	Reference   string
	Amount      money.Amount
	Currency    string
	Email       string
	Description string
	CallbackURL string
	Metadata    map[string]string
}

type PaymentResponse struct {
	PaymentURL string
	Reference  string
	Data       map[string]string
}

type PaymentVerifyRequest struct {
	Reference string
}

type PaymentVerifyResponse struct {
	Success bool
	// State is the provider's own status string.
	State string
	// Terminal is false while the provider may still complete the payment.
	Terminal    bool
	ProviderRef string
	Amount      money.Amount
	Currency    string
	PaidAt      *time.Time
}
