package gateway

import (
	"context"
	"strings"

	"mealsub/internal/domain"

	"github.com/google/uuid"
)

// Mock never touches the network. Every session it is asked about is paid.
type Mock struct{}

func NewMock() *Mock { return &Mock{} }

func (m *Mock) Name() string { return domain.GatewayMock }

func (m *Mock) CreatePaymentLink(_ context.Context, in LinkRequest) (*Link, error) {
	id := "mock_" + uuid.NewString()
	sep := "?"
	if strings.Contains(in.SuccessURL, "?") {
		sep = "&"
	}
	return &Link{
		URL:         in.SuccessURL + sep + "session_id=" + id,
		SessionID:   id,
		Gateway:     m.Name(),
		GatewayData: map[string]any{"mock": true},
	}, nil
}

func (m *Mock) ValidatePayment(_ context.Context, sessionID string) Validation {
	return validationFor(domain.SessionPaid, map[string]any{
		"mock":           true,
		"transaction_id": "mock_txn_" + strings.TrimPrefix(sessionID, "mock_"),
	})
}
