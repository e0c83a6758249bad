package payments

import "context"

// PaymentGateway is one payment provider. InitiatePayment opens a payment
// for req.Reference and returns where the shopper completes it;
// VerifyPayment asks the provider how that reference ended.
type PaymentGateway interface {
	InitiatePayment(ctx context.Context, req PaymentRequest) (PaymentResponse, error)
	VerifyPayment(ctx context.Context, req PaymentVerifyRequest) (PaymentVerifyResponse, error)
}
