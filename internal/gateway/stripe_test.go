package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"mealsub/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripeCreatePaymentLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "4500", r.PostForm.Get("line_items[0][price_data][unit_amount]"))
		assert.Equal(t, "omr", r.PostForm.Get("line_items[0][price_data][currency]"))
		assert.Equal(t, "42", r.PostForm.Get("metadata[order_id]"))
		assert.Equal(t, "subscription", r.PostForm.Get("metadata[order_type]"))
		assert.Equal(t, "7", r.PostForm.Get("metadata[user_id]"))
		assert.Contains(t, r.PostForm.Get("success_url"), "&session_id={CHECKOUT_SESSION_ID}")
		writeJSON(w, http.StatusOK, map[string]any{"id": "cs_test_1", "url": "https://checkout.stripe.test/cs_test_1", "status": "open"})
	}))
	defer srv.Close()

	s := NewStripe(StripeCredentials{PublicKey: "pk_test", SecretKey: "sk_test", BaseURL: srv.URL}, srv.Client())
	link, err := s.CreatePaymentLink(context.Background(), linkRequest())
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", link.SessionID)
	assert.Equal(t, "https://checkout.stripe.test/cs_test_1", link.URL)
	assert.Equal(t, domain.GatewayStripe, link.Gateway)
}

func TestStripeCreatePaymentLinkMissingURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": "cs_test_1"})
	}))
	defer srv.Close()

	s := NewStripe(StripeCredentials{PublicKey: "pk", SecretKey: "sk", BaseURL: srv.URL}, srv.Client())
	_, err := s.CreatePaymentLink(context.Background(), linkRequest())
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "create session", pe.Op)
}

func TestStripeValidatePayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions/cs_1", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{"id": "cs_1", "status": "complete", "payment_status": "paid", "payment_intent": "pi_123"})
	}))
	defer srv.Close()

	s := NewStripe(StripeCredentials{PublicKey: "pk", SecretKey: "sk", BaseURL: srv.URL}, srv.Client())
	v := s.ValidatePayment(context.Background(), "cs_1")
	assert.True(t, v.Valid)
	assert.Equal(t, domain.SessionPaid, v.Status)
	assert.Equal(t, "pi_123", v.GatewayData["transaction_id"])
}

func TestMapStripeStatus(t *testing.T) {
	cases := []struct {
		status, payment string
		want            domain.PaymentSessionStatus
	}{
		{"expired", "unpaid", domain.SessionExpired},
		{"complete", "paid", domain.SessionPaid},
		{"complete", "no_payment_required", domain.SessionPaid},
		{"open", "unpaid", domain.SessionPending},
		{"complete", "unpaid", domain.SessionPending},
		{"open", "", domain.SessionFailed},
		{"", "", domain.SessionFailed},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, mapStripeStatus(c.status, c.payment), "%s/%s", c.status, c.payment)
	}
}
