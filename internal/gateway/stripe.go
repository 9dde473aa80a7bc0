package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"mealsub/internal/domain"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const stripeDefaultBaseURL = "https://api.stripe.com"

type StripeCredentials struct {
	PublicKey string `mapstructure:"public_key" validate:"required"`
	SecretKey string `mapstructure:"secret_key" validate:"required"`
	BaseURL   string `mapstructure:"base_url"`
}

// Stripe talks to Checkout Sessions.
type Stripe struct {
	creds StripeCredentials
	api   apiClient
}

func NewStripe(creds StripeCredentials, client *http.Client) *Stripe {
	base := creds.BaseURL
	if base == "" {
		base = stripeDefaultBaseURL
	}
	return &Stripe{creds: creds, api: newAPIClient(domain.GatewayStripe, base, client)}
}

func (s *Stripe) Name() string { return domain.GatewayStripe }

type stripeSession struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	PaymentIntent string `json:"payment_intent"`
	ExpiresAt     int64  `json:"expires_at"`
}

// StripeMinorUnits converts an amount to cents.
func StripeMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func (s *Stripe) CreatePaymentLink(ctx context.Context, in LinkRequest) (*Link, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", withSessionPlaceholder(in.SuccessURL))
	form.Set("cancel_url", in.CancelURL)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(in.Currency))
	form.Set("line_items[0][price_data][unit_amount]", decimal.NewFromInt(StripeMinorUnits(in.Amount)).String())
	form.Set("line_items[0][price_data][product_data][name]", in.Description)
	for k, v := range in.Metadata.asStrings() {
		form.Set("metadata["+k+"]", v)
	}

	req, err := s.api.newFormRequest(ctx, http.MethodPost, "/v1/checkout/sessions", form)
	if err != nil {
		return nil, &ProviderError{Gateway: s.Name(), Op: "create session", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+s.creds.SecretKey)

	var out stripeSession
	raw, err := s.api.do(req, "create session", &out)
	if err != nil {
		return nil, err
	}
	if out.ID == "" || out.URL == "" {
		return nil, &ProviderError{Gateway: s.Name(), Op: "create session", Err: errors.New("response has no session id or url")}
	}
	return &Link{
		URL:       out.URL,
		SessionID: out.ID,
		Gateway:   s.Name(),
		GatewayData: map[string]any{
			"stripe_status": out.Status,
			"expires_at":    raw["expires_at"],
		},
	}, nil
}

func (s *Stripe) ValidatePayment(ctx context.Context, sessionID string) Validation {
	req, err := s.api.newJSONRequest(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return failedValidation(err)
	}
	req.Header.Set("Authorization", "Bearer "+s.creds.SecretKey)

	var out stripeSession
	if _, err := s.api.do(req, "retrieve session", &out); err != nil {
		return failedValidation(err)
	}
	data := map[string]any{
		"stripe_status":  out.Status,
		"payment_status": out.PaymentStatus,
	}
	if out.PaymentIntent != "" {
		data["transaction_id"] = out.PaymentIntent
	}
	return validationFor(mapStripeStatus(out.Status, out.PaymentStatus), data)
}

func mapStripeStatus(status, paymentStatus string) domain.PaymentSessionStatus {
	switch {
	case status == "expired":
		return domain.SessionExpired
	case paymentStatus == "paid" || paymentStatus == "no_payment_required":
		return domain.SessionPaid
	case paymentStatus == "unpaid" && (status == "open" || status == "complete"):
		// complete+unpaid is a delayed payment method still clearing
		return domain.SessionPending
	default:
		return domain.SessionFailed
	}
}

// withSessionPlaceholder lets Stripe echo the session id back on redirect.
func withSessionPlaceholder(successURL string) string {
	sep := "?"
	if strings.Contains(successURL, "?") {
		sep = "&"
	}
	return successURL + sep + "session_id={CHECKOUT_SESSION_ID}"
}
