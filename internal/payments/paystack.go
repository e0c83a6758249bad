package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"kicks/internal/money"
)

const paystackBaseURL = "https://api.paystack.co"

type PaystackAdapter struct {
	SecretKey   string
	CallbackURL string
	BaseURL     string
	httpClient  *http.Client
}

func NewPaystackAdapter(secret, callbackURL string) *PaystackAdapter {
	return &PaystackAdapter{
		SecretKey:   secret,
		CallbackURL: callbackURL,
		BaseURL:     paystackBaseURL,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

// paystackEnvelope is the wrapper around every Paystack response.
type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (p *PaystackAdapter) do(ctx context.Context, method, path string, payload any) (*paystackEnvelope, int, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("paystack encode: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(p.BaseURL, "/")+path, body)
	if err != nil {
		return nil, 0, fmt.Errorf("paystack request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("paystack %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("paystack read body: %w", err)
	}

	var env paystackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("paystack decode: http=%d err=%w body=%s", resp.StatusCode, err, string(raw))
	}
	return &env, resp.StatusCode, nil
}

func (p *PaystackAdapter) InitiatePayment(ctx context.Context, req PaymentRequest) (PaymentResponse, error) {
	callback := req.CallbackURL
	if callback == "" {
		callback = p.CallbackURL
	}

	// Paystack takes the amount in the currency's subunit (pesewas).
	payload := map[string]any{
		"email":        req.Email,
		"amount":       req.Amount.MinorUnits(),
		"reference":    req.Reference,
		"callback_url": callback,
		"metadata":     req.Metadata,
	}
	if req.Currency != "" {
		payload["currency"] = req.Currency
	}

	env, code, err := p.do(ctx, http.MethodPost, "/transaction/initialize", payload)
	if err != nil {
		return PaymentResponse{}, err
	}
	if code != http.StatusOK || !env.Status {
		return PaymentResponse{}, fmt.Errorf("paystack initialize failed: http=%d message=%s", code, env.Message)
	}

	var data struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return PaymentResponse{}, fmt.Errorf("paystack initialize decode: %w", err)
	}

	return PaymentResponse{
		PaymentURL: data.AuthorizationURL,
		Reference:  data.Reference,
		Data: map[string]string{
			"access_code":       data.AccessCode,
			"authorization_url": data.AuthorizationURL,
		},
	}, nil
}

func (p *PaystackAdapter) VerifyPayment(ctx context.Context, req PaymentVerifyRequest) (PaymentVerifyResponse, error) {
	ref := strings.TrimSpace(req.Reference)
	if ref == "" {
		return PaymentVerifyResponse{}, fmt.Errorf("paystack verify requires a reference")
	}

	env, code, err := p.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(ref), nil)
	if err != nil {
		return PaymentVerifyResponse{}, err
	}
	if code != http.StatusOK || !env.Status {
		return PaymentVerifyResponse{}, fmt.Errorf("paystack verify failed: http=%d message=%s", code, env.Message)
	}

	var data struct {
		Status    string     `json:"status"`
		Reference string     `json:"reference"`
		Amount    int64      `json:"amount"`
		Currency  string     `json:"currency"`
		PaidAt    *time.Time `json:"paid_at"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return PaymentVerifyResponse{}, fmt.Errorf("paystack verify decode: %w", err)
	}

	state := strings.ToLower(strings.TrimSpace(data.Status))
	terminal := false
	switch state {
	case "success", "failed", "abandoned", "reversed":
		terminal = true
	}

	return PaymentVerifyResponse{
		Success:     state == "success",
		State:       state,
		Terminal:    terminal,
		ProviderRef: data.Reference,
		Amount:      money.Amount(data.Amount),
		Currency:    data.Currency,
		PaidAt:      data.PaidAt,
	}, nil
}
