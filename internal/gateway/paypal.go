package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"mealsub/internal/domain"

	"github.com/lithammer/shortuuid/v3"
	"github.com/pkg/errors"
)

const (
	paypalSandboxBaseURL = "https://api-m.sandbox.paypal.com"
	paypalLiveBaseURL    = "https://api-m.paypal.com"
)

type PayPalCredentials struct {
	ClientID     string `mapstructure:"client_id" validate:"required"`
	ClientSecret string `mapstructure:"client_secret" validate:"required"`
	BaseURL      string `mapstructure:"base_url"`
}

// PayPal uses Orders v2 with OAuth2 client credentials.
type PayPal struct {
	creds PayPalCredentials
	api   apiClient
	now   func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewPayPal(creds PayPalCredentials, mode string, client *http.Client) *PayPal {
	base := creds.BaseURL
	if base == "" {
		base = paypalSandboxBaseURL
		if mode == "live" {
			base = paypalLiveBaseURL
		}
	}
	return &PayPal{creds: creds, api: newAPIClient(domain.GatewayPayPal, base, client), now: time.Now}
}

func (p *PayPal) Name() string { return domain.GatewayPayPal }

type paypalToken struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type paypalLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type paypalCapture struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type paypalOrder struct {
	ID            string       `json:"id"`
	Status        string       `json:"status"`
	Links         []paypalLink `json:"links"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []paypalCapture `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

func (o paypalOrder) approveURL() string {
	for _, l := range o.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			return l.Href
		}
	}
	return ""
}

func (o paypalOrder) captureID() string {
	for _, pu := range o.PurchaseUnits {
		for _, c := range pu.Payments.Captures {
			if c.ID != "" {
				return c.ID
			}
		}
	}
	return ""
}

func (p *PayPal) accessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token != "" && p.now().Before(p.tokenExpiry) {
		return p.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	req, err := p.api.newFormRequest(ctx, http.MethodPost, "/v1/oauth2/token", form)
	if err != nil {
		return "", &ProviderError{Gateway: p.Name(), Op: "oauth token", Err: err}
	}
	req.SetBasicAuth(p.creds.ClientID, p.creds.ClientSecret)

	var tok paypalToken
	if _, err := p.api.do(req, "oauth token", &tok); err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", &ProviderError{Gateway: p.Name(), Op: "oauth token", Err: errors.New("credentials rejected: empty access token")}
	}
	p.token = tok.AccessToken
	// refresh a minute early
	p.tokenExpiry = p.now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	return p.token, nil
}

func (p *PayPal) authorized(ctx context.Context, method, path string, body any) (*http.Request, error) {
	token, err := p.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	req, err := p.api.newJSONRequest(ctx, method, path, body)
	if err != nil {
		return nil, &ProviderError{Gateway: p.Name(), Op: path, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}

func (p *PayPal) CreatePaymentLink(ctx context.Context, in LinkRequest) (*Link, error) {
	m := in.Metadata
	body := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"reference_id": fmt.Sprintf("%s-%d", m.OrderType, m.OrderID),
			"custom_id":    fmt.Sprintf("%s:%d:%d", m.OrderType, m.OrderID, m.UserID),
			"description":  in.Description,
			"amount": map[string]any{
				"currency_code": strings.ToUpper(in.Currency),
				"value":         in.Amount.StringFixed(2),
			},
		}},
		"application_context": map[string]any{
			"return_url":  in.SuccessURL,
			"cancel_url":  in.CancelURL,
			"user_action": "PAY_NOW",
		},
	}
	req, err := p.authorized(ctx, http.MethodPost, "/v2/checkout/orders", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("PayPal-Request-Id", shortuuid.New())

	var out paypalOrder
	if _, err := p.api.do(req, "create order", &out); err != nil {
		return nil, err
	}
	link := out.approveURL()
	if out.ID == "" || link == "" {
		return nil, &ProviderError{Gateway: p.Name(), Op: "create order", Err: errors.New("response has no order id or approve link")}
	}
	return &Link{
		URL:         link,
		SessionID:   out.ID,
		Gateway:     p.Name(),
		GatewayData: map[string]any{"paypal_status": out.Status},
	}, nil
}

func (p *PayPal) ValidatePayment(ctx context.Context, sessionID string) Validation {
	req, err := p.authorized(ctx, http.MethodGet, "/v2/checkout/orders/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return failedValidation(err)
	}
	var order paypalOrder
	if _, err := p.api.do(req, "get order", &order); err != nil {
		return failedValidation(err)
	}

	if order.Status == "APPROVED" {
		req, err := p.authorized(ctx, http.MethodPost, "/v2/checkout/orders/"+url.PathEscape(sessionID)+"/capture", map[string]any{})
		if err != nil {
			return failedValidation(err)
		}
		req.Header.Set("PayPal-Request-Id", "capture-"+sessionID)
		var captured paypalOrder
		if _, err := p.api.do(req, "capture order", &captured); err != nil {
			return failedValidation(err)
		}
		order = captured
	}

	data := map[string]any{"paypal_status": order.Status}
	if id := order.captureID(); id != "" {
		data["transaction_id"] = id
	}
	return validationFor(mapPayPalStatus(order.Status), data)
}

func mapPayPalStatus(status string) domain.PaymentSessionStatus {
	switch status {
	case "COMPLETED":
		return domain.SessionPaid
	case "CREATED", "SAVED", "APPROVED", "PAYER_ACTION_REQUIRED":
		return domain.SessionPending
	default:
		return domain.SessionFailed
	}
}
