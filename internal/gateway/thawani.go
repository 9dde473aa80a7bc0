package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"mealsub/internal/domain"

	"github.com/lithammer/shortuuid/v3"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	thawaniSandboxBaseURL = "https://uatcheckout.thawani.om"
	thawaniLiveBaseURL    = "https://checkout.thawani.om"

	thawaniMaxProductName = 39
)

type ThawaniCredentials struct {
	SecretKey      string `mapstructure:"secret_key" validate:"required"`
	PublishableKey string `mapstructure:"publishable_key" validate:"required"`
	BaseURL        string `mapstructure:"base_url"`
}

// Thawani is the Omani checkout provider. Amounts are sent in baisa.
type Thawani struct {
	creds ThawaniCredentials
	api   apiClient
}

func NewThawani(creds ThawaniCredentials, mode string, client *http.Client) *Thawani {
	base := creds.BaseURL
	if base == "" {
		base = thawaniSandboxBaseURL
		if mode == "live" {
			base = thawaniLiveBaseURL
		}
	}
	return &Thawani{creds: creds, api: newAPIClient(domain.GatewayThawani, base, client)}
}

func (t *Thawani) Name() string { return domain.GatewayThawani }

type thawaniEnvelope struct {
	Success     bool        `json:"success"`
	Code        int         `json:"code"`
	Description string      `json:"description"`
	Data        thawaniData `json:"data"`
}

type thawaniData struct {
	SessionID         string `json:"session_id"`
	ClientReferenceID string `json:"client_reference_id"`
	PaymentStatus     string `json:"payment_status"`
	Invoice           string `json:"invoice"`
}

// ThawaniMinorUnits converts an OMR amount to baisa.
func ThawaniMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(1000)).Round(0).IntPart()
}

// ThawaniProductName fits a name into the provider's 39 character limit.
// Longer names become "..." followed by their first 36 characters.
func ThawaniProductName(name string) string {
	r := []rune(name)
	if len(r) <= thawaniMaxProductName {
		return name
	}
	return "..." + string(r[:thawaniMaxProductName-3])
}

func (t *Thawani) CreatePaymentLink(ctx context.Context, in LinkRequest) (*Link, error) {
	if !strings.EqualFold(in.Currency, "OMR") {
		return nil, &ProviderError{Gateway: t.Name(), Op: "create session", Err: errors.Errorf("unsupported currency %q", in.Currency)}
	}
	ref := shortuuid.New()
	body := map[string]any{
		"client_reference_id": ref,
		"mode":                "payment",
		"products": []map[string]any{{
			"name":        ThawaniProductName(in.Description),
			"quantity":    1,
			"unit_amount": ThawaniMinorUnits(in.Amount),
		}},
		"success_url": in.SuccessURL,
		"cancel_url":  in.CancelURL,
		"metadata":    in.Metadata.asStrings(),
	}
	req, err := t.api.newJSONRequest(ctx, http.MethodPost, "/api/v1/checkout/session", body)
	if err != nil {
		return nil, &ProviderError{Gateway: t.Name(), Op: "create session", Err: err}
	}
	req.Header.Set("thawani-api-key", t.creds.SecretKey)

	var out thawaniEnvelope
	if _, err := t.api.do(req, "create session", &out); err != nil {
		return nil, err
	}
	if !out.Success || out.Data.SessionID == "" {
		return nil, &ProviderError{Gateway: t.Name(), Op: "create session", Err: errors.Errorf("response has no session id: %s", out.Description)}
	}
	link := t.api.baseURL + "/pay/" + url.PathEscape(out.Data.SessionID) + "?key=" + url.QueryEscape(t.creds.PublishableKey)
	return &Link{
		URL:       link,
		SessionID: out.Data.SessionID,
		Gateway:   t.Name(),
		GatewayData: map[string]any{
			"client_reference_id": ref,
			"payment_status":      out.Data.PaymentStatus,
		},
	}, nil
}

func (t *Thawani) ValidatePayment(ctx context.Context, sessionID string) Validation {
	req, err := t.api.newJSONRequest(ctx, http.MethodGet, "/api/v1/checkout/session/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return failedValidation(err)
	}
	req.Header.Set("thawani-api-key", t.creds.SecretKey)

	var out thawaniEnvelope
	if _, err := t.api.do(req, "retrieve session", &out); err != nil {
		return failedValidation(err)
	}
	if !out.Success {
		return declinedValidation("thawani retrieve session: " + out.Description)
	}
	data := map[string]any{"payment_status": out.Data.PaymentStatus}
	if out.Data.Invoice != "" {
		data["transaction_id"] = out.Data.Invoice
	}
	return validationFor(mapThawaniStatus(out.Data.PaymentStatus), data)
}

func mapThawaniStatus(status string) domain.PaymentSessionStatus {
	switch status {
	case "paid":
		return domain.SessionPaid
	case "unpaid":
		return domain.SessionPending
	case "cancelled":
		return domain.SessionFailed
	case "expired":
		return domain.SessionExpired
	default:
		return domain.SessionFailed
	}
}
