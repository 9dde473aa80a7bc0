package payment

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"mealsub/internal/domain"
	"mealsub/internal/gateway"
	"mealsub/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCreatePaymentLinkPersistsPendingSession(t *testing.T) {
	db := setupTestDB(t)
	seedSubscription(t, db, 42, 7)
	gw := &mockGateway{}
	svc := newTestService(t, db, gw)
	svc.newToken = func() string { return "tok42" }

	gw.On("CreatePaymentLink", mock.Anything, mock.MatchedBy(func(req gateway.LinkRequest) bool {
		return req.Currency == "OMR" &&
			req.Amount.Equal(decimal.RequireFromString("45.00")) &&
			req.SuccessURL == "https://meals.example.com/api/v1/payments/success?order_id=42&order_type=subscription" &&
			req.CancelURL == "https://meals.example.com/api/v1/payments/cancel?cancel_token=tok42&order_id=42&order_type=subscription" &&
			req.Metadata.OrderID == 42 && req.Metadata.UserID == 7
	})).Return(&gateway.Link{
		URL:         "https://pay.example.com/sess_1",
		SessionID:   "sess_1",
		GatewayData: map[string]any{"id": "sess_1", domain.SnapshotKey: "overwrite attempt"},
		Gateway:     "fake",
	}, nil).Once()

	res, err := svc.CreatePaymentLink(context.Background(), CreateLinkInput{
		UserID:   7,
		Order:    domain.SubscriptionRef{ID: 42},
		Amount:   decimal.RequireFromString("45.00"),
		Currency: "omr",
		Snapshot: testSnapshot(),
	})
	require.NoError(t, err)
	gw.AssertExpectations(t)

	assert.Equal(t, "https://pay.example.com/sess_1", res.PaymentLink)
	stored, err := repository.NewPaymentSessionRepository(db).GetByID(context.Background(), "sess_1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionPending, stored.Status)
	assert.Equal(t, "fake", stored.Gateway)
	assert.Equal(t, "OMR", stored.Currency)
	assert.WithinDuration(t, time.Now().Add(time.Hour), stored.ExpiresAt, time.Minute)
	assert.Equal(t, "tok42", stored.CancelToken())

	snap, err := stored.Snapshot()
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, []int64{11, 12}, snap.MealIDs)
	assert.Equal(t, "2024-01-03", snap.StartDate)
}

func TestCreatePaymentLinkRejectsBadInput(t *testing.T) {
	db := setupTestDB(t)
	seedSubscription(t, db, 42, 7)
	gw := &mockGateway{}
	svc := newTestService(t, db, gw)
	ctx := context.Background()

	base := CreateLinkInput{UserID: 7, Order: domain.SubscriptionRef{ID: 42}, Amount: decimal.NewFromInt(45), Currency: "OMR", Snapshot: testSnapshot()}

	in := base
	in.Amount = decimal.Zero
	_, err := svc.CreatePaymentLink(ctx, in)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	in = base
	in.Currency = "RIAL"
	_, err = svc.CreatePaymentLink(ctx, in)
	assert.ErrorIs(t, err, ErrInvalidCurrency)

	in = base
	in.Snapshot = &domain.SubscriptionSnapshot{MealIDs: []int64{1}, DeliveryDays: []string{"funday"}, StartDate: "2024-01-03"}
	_, err = svc.CreatePaymentLink(ctx, in)
	assert.ErrorIs(t, err, ErrInvalidSnapshot)

	in = base
	in.UserID = 8
	_, err = svc.CreatePaymentLink(ctx, in)
	assert.ErrorIs(t, err, ErrForbidden)

	in = base
	in.Order = domain.SubscriptionRef{ID: 999}
	_, err = svc.CreatePaymentLink(ctx, in)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	in = base
	in.Gateway = "stripe"
	_, err = svc.CreatePaymentLink(ctx, in)
	assert.ErrorIs(t, err, gateway.ErrGatewayNotLoaded)

	gw.AssertNotCalled(t, "CreatePaymentLink", mock.Anything, mock.Anything)
}

func TestCreatePaymentLinkPropagatesProviderError(t *testing.T) {
	db := setupTestDB(t)
	seedCart(t, db, 5, 7)
	gw := &mockGateway{}
	svc := newTestService(t, db, gw)

	gw.On("CreatePaymentLink", mock.Anything, mock.Anything).
		Return(nil, &gateway.ProviderError{Gateway: "fake", Op: "create", StatusCode: http.StatusUnauthorized, Err: errors.New("bad key")}).Once()

	_, err := svc.CreatePaymentLink(context.Background(), CreateLinkInput{
		UserID:   7,
		Order:    domain.CartRef{ID: 5},
		Amount:   decimal.RequireFromString("12.50"),
		Currency: "OMR",
	})
	var providerErr *gateway.ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, http.StatusUnauthorized, providerErr.StatusCode)

	var count int64
	require.NoError(t, db.Model(&domain.PaymentSession{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestValidatePaymentExpiredSkipsGateway(t *testing.T) {
	db := setupTestDB(t)
	gw := &mockGateway{}
	svc := newTestService(t, db, gw)
	seedSession(t, db, &domain.PaymentSession{
		ID: "sess_old", UserID: 7, ModelType: "subscription", ModelID: 42, Gateway: "fake",
		Amount: decimal.NewFromInt(45), Currency: "OMR", Status: domain.SessionPending,
		ExpiresAt: time.Now().Add(-time.Minute),
	})

	res, err := svc.ValidatePayment(context.Background(), "sess_old")
	require.NoError(t, err)
	assert.False(t, res.Validation.Valid)
	assert.Equal(t, domain.SessionExpired, res.Validation.Status)
	assert.Equal(t, domain.SessionExpired, res.Session.Status)
	gw.AssertNotCalled(t, "ValidatePayment", mock.Anything, mock.Anything)

	stored, err := repository.NewPaymentSessionRepository(db).GetByID(context.Background(), "sess_old")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionExpired, stored.Status)
}

func TestValidatePaymentTerminalReturnsStored(t *testing.T) {
	db := setupTestDB(t)
	gw := &mockGateway{}
	svc := newTestService(t, db, gw)
	seedSession(t, db, &domain.PaymentSession{
		ID: "sess_failed", UserID: 7, ModelType: "cart", ModelID: 5, Gateway: "fake",
		Amount: decimal.NewFromInt(5), Currency: "OMR", Status: domain.SessionFailed,
		ExpiresAt: time.Now().Add(time.Hour),
	})

	res, err := svc.ValidatePayment(context.Background(), "sess_failed")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionFailed, res.Validation.Status)
	assert.False(t, res.Validation.Valid)
	gw.AssertNotCalled(t, "ValidatePayment", mock.Anything, mock.Anything)
}

func TestValidatePaymentUnknownSession(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db, &mockGateway{})

	_, err := svc.ValidatePayment(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestValidatePaymentSoftFailureStaysPending(t *testing.T) {
	db := setupTestDB(t)
	gw := &mockGateway{}
	svc := newTestService(t, db, gw)
	seedSession(t, db, &domain.PaymentSession{
		ID: "sess_soft", UserID: 7, ModelType: "cart", ModelID: 5, Gateway: "fake",
		Amount: decimal.NewFromInt(5), Currency: "OMR", Status: domain.SessionPending,
		ExpiresAt: time.Now().Add(time.Hour),
	})
	gw.On("ValidatePayment", mock.Anything, "sess_soft").
		Return(gateway.Validation{Status: domain.SessionFailed, ErrorMessage: "upstream timeout", Retryable: true}).Once()

	res, err := svc.ValidatePayment(context.Background(), "sess_soft")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionPending, res.Session.Status)

	stored, err := repository.NewPaymentSessionRepository(db).GetByID(context.Background(), "sess_soft")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionPending, stored.Status)
	assert.Equal(t, "upstream timeout", stored.GatewayData["last_error"])
	assert.Nil(t, stored.PaidAt)
}

func TestValidatePaymentProviderDeclineIsTerminal(t *testing.T) {
	db := setupTestDB(t)
	gw := &mockGateway{}
	svc := newTestService(t, db, gw)
	seedSession(t, db, &domain.PaymentSession{
		ID: "sess_declined", UserID: 7, ModelType: "cart", ModelID: 5, Gateway: "fake",
		Amount: decimal.NewFromInt(5), Currency: "OMR", Status: domain.SessionPending,
		ExpiresAt: time.Now().Add(time.Hour),
	})
	gw.On("ValidatePayment", mock.Anything, "sess_declined").
		Return(gateway.Validation{Status: domain.SessionFailed, ErrorMessage: "capture order: status 422: INSTRUMENT_DECLINED"}).Once()

	res, err := svc.ValidatePayment(context.Background(), "sess_declined")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionFailed, res.Session.Status)
	assert.Equal(t, domain.SessionFailed, res.Validation.Status)

	stored, err := repository.NewPaymentSessionRepository(db).GetByID(context.Background(), "sess_declined")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionFailed, stored.Status)
	assert.Contains(t, stored.GatewayData["last_error"], "INSTRUMENT_DECLINED")
}

func TestValidatePaymentSanitizesUnknownStatus(t *testing.T) {
	db := setupTestDB(t)
	gw := &mockGateway{}
	svc := newTestService(t, db, gw)
	seedSession(t, db, &domain.PaymentSession{
		ID: "sess_odd", UserID: 7, ModelType: "cart", ModelID: 5, Gateway: "fake",
		Amount: decimal.NewFromInt(5), Currency: "OMR", Status: domain.SessionPending,
		ExpiresAt: time.Now().Add(time.Hour),
	})
	gw.On("ValidatePayment", mock.Anything, "sess_odd").
		Return(gateway.Validation{Status: "refunded"}).Once()

	res, err := svc.ValidatePayment(context.Background(), "sess_odd")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionFailed, res.Session.Status)
}

func TestCancelPaymentRequiresMatchingToken(t *testing.T) {
	db := setupTestDB(t)
	seedCart(t, db, 5, 7)
	svc := newTestService(t, db, &mockGateway{})
	ctx := context.Background()
	seedSession(t, db, &domain.PaymentSession{
		ID: "sess_cancel", UserID: 7, ModelType: "cart", ModelID: 5, Gateway: "fake",
		Amount: decimal.NewFromInt(5), Currency: "OMR", Status: domain.SessionPending,
		GatewayData: map[string]any{domain.CancelTokenKey: "tok_right"},
		ExpiresAt:   time.Now().Add(time.Hour),
	})

	_, err := svc.CancelPayment(ctx, domain.CartRef{ID: 5}, "")
	assert.ErrorIs(t, err, ErrInvalidCancelToken)
	_, err = svc.CancelPayment(ctx, domain.CartRef{ID: 5}, "tok_wrong")
	assert.ErrorIs(t, err, ErrInvalidCancelToken)

	stored, err := repository.NewPaymentSessionRepository(db).GetByID(ctx, "sess_cancel")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionPending, stored.Status)

	session, err := svc.CancelPayment(ctx, domain.CartRef{ID: 5}, "tok_right")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionFailed, session.Status)
	assert.Contains(t, session.GatewayData, "cancelled_at")

	order, err := repository.NewOrderRepository(db).Get(ctx, domain.CartRef{ID: 5})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPending, order.Status)
	assert.Equal(t, domain.OrderPaymentFailed, order.PaymentStatus)

	_, err = svc.CancelPayment(ctx, domain.CartRef{ID: 5}, "tok_right")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionForCallback(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db, &mockGateway{})
	ctx := context.Background()
	older := &domain.PaymentSession{
		ID: "sess_a", UserID: 7, ModelType: "cart", ModelID: 5, Gateway: "fake",
		Amount: decimal.NewFromInt(5), Currency: "OMR", Status: domain.SessionFailed,
		ExpiresAt: time.Now().Add(time.Hour), CreatedAt: time.Now().Add(-time.Hour),
	}
	newer := &domain.PaymentSession{
		ID: "sess_b", UserID: 7, ModelType: "cart", ModelID: 5, Gateway: "fake",
		Amount: decimal.NewFromInt(5), Currency: "OMR", Status: domain.SessionPending,
		ExpiresAt: time.Now().Add(time.Hour), CreatedAt: time.Now(),
	}
	seedSession(t, db, older)
	seedSession(t, db, newer)

	s, err := svc.SessionForCallback(ctx, domain.CartRef{ID: 5}, "")
	require.NoError(t, err)
	assert.Equal(t, "sess_b", s.ID)

	s, err = svc.SessionForCallback(ctx, domain.CartRef{ID: 5}, "sess_a")
	require.NoError(t, err)
	assert.Equal(t, "sess_a", s.ID)

	_, err = svc.SessionForCallback(ctx, domain.CartRef{ID: 6}, "sess_a")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestServiceExpireStale(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db, &mockGateway{})
	seedSession(t, db, &domain.PaymentSession{
		ID: "sess_stale", UserID: 7, ModelType: "cart", ModelID: 5, Gateway: "fake",
		Amount: decimal.NewFromInt(5), Currency: "OMR", Status: domain.SessionPending,
		ExpiresAt: time.Now().Add(-2 * time.Hour),
	})

	n, err := svc.ExpireStale(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

// Order 42 for 45.00 OMR goes from link creation through a paid validation to
// an active order with one completed transaction.
func TestPaymentFlowEndToEnd(t *testing.T) {
	db := setupTestDB(t)
	seedSubscription(t, db, 42, 7)
	gw := &mockGateway{}
	svc := newTestService(t, db, gw)
	settlement := NewSettlement(db, nil, svc.log)
	ctx := context.Background()

	gw.On("CreatePaymentLink", mock.Anything, mock.Anything).Return(&gateway.Link{
		URL: "https://pay.example.com/sess_42", SessionID: "sess_42", GatewayData: map[string]any{"id": "sess_42"}, Gateway: "fake",
	}, nil).Once()
	gw.On("ValidatePayment", mock.Anything, "sess_42").Return(gateway.Validation{
		Valid: true, Status: domain.SessionPaid, GatewayData: map[string]any{"transaction_id": "txn_9", "status": "paid"},
	}).Once()

	link, err := svc.CreatePaymentLink(ctx, CreateLinkInput{
		UserID: 7, Order: domain.SubscriptionRef{ID: 42}, Amount: decimal.RequireFromString("45.00"), Currency: "OMR", Snapshot: testSnapshot(),
	})
	require.NoError(t, err)
	assert.Equal(t, "sess_42", link.Session.ID)
	assert.Equal(t, domain.SessionPending, link.Session.Status)
	assert.Contains(t, link.Session.GatewayData, domain.SnapshotKey)

	res, err := svc.ValidatePayment(ctx, "sess_42")
	require.NoError(t, err)
	require.True(t, res.Validation.Valid)
	assert.Equal(t, domain.SessionPaid, res.Session.Status)
	require.NotNil(t, res.Session.PaidAt)
	assert.Contains(t, res.Session.GatewayData, domain.SnapshotKey)

	settled, err := settlement.Settle(ctx, res.Session, res.Validation)
	require.NoError(t, err)
	assert.False(t, settled.AlreadySettled)
	assert.Len(t, settled.Items, 2)

	order, err := repository.NewOrderRepository(db).Get(ctx, domain.SubscriptionRef{ID: 42})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderActive, order.Status)
	assert.Equal(t, domain.OrderPaymentPaid, order.PaymentStatus)

	txs, err := repository.NewPaymentTransactionRepository(db).ListForOrder(ctx, domain.SubscriptionRef{ID: 42})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, domain.TransactionCompleted, txs[0].Status)
	assert.Equal(t, "sess_42", txs[0].PaymentSessionID)
	require.NotNil(t, txs[0].GatewayTransactionID)
	assert.Equal(t, "txn_9", *txs[0].GatewayTransactionID)
	assert.True(t, txs[0].Amount.Equal(decimal.RequireFromString("45.00")))

	hist, err := svc.History(ctx, domain.SubscriptionRef{ID: 42})
	require.NoError(t, err)
	assert.Len(t, hist.Sessions, 1)
	assert.Len(t, hist.Transactions, 1)
	gw.AssertExpectations(t)
}
