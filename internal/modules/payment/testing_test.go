package payment

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"mealsub/internal/database"
	"mealsub/internal/domain"
	"mealsub/internal/gateway"
	"mealsub/internal/pkg/logging"
	"mealsub/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Name() string { return "fake" }

func (m *mockGateway) CreatePaymentLink(ctx context.Context, req gateway.LinkRequest) (*gateway.Link, error) {
	args := m.Called(ctx, req)
	link, _ := args.Get(0).(*gateway.Link)
	return link, args.Error(1)
}

func (m *mockGateway) ValidatePayment(ctx context.Context, sessionID string) gateway.Validation {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(gateway.Validation)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:payment_%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func newTestService(t *testing.T, db *gorm.DB, gateways ...gateway.Gateway) *Service {
	t.Helper()
	reg, err := gateway.NewRegistry(gateways...)
	require.NoError(t, err)
	return NewService(
		repository.NewPaymentSessionRepository(db),
		repository.NewPaymentTransactionRepository(db),
		repository.NewOrderRepository(db),
		reg,
		Options{AppURL: "https://meals.example.com/", SessionTTL: time.Hour},
		logging.Discard(),
	)
}

func seedSubscription(t *testing.T, db *gorm.DB, id, userID int64) {
	t.Helper()
	require.NoError(t, db.Create(&domain.Subscription{
		ID:            id,
		UserID:        userID,
		Status:        domain.OrderPending,
		PaymentStatus: domain.OrderPaymentPending,
		TotalAmount:   decimal.RequireFromString("45.00"),
		Currency:      "OMR",
	}).Error)
}

func seedCart(t *testing.T, db *gorm.DB, id, userID int64) {
	t.Helper()
	require.NoError(t, db.Create(&domain.CartOrder{
		ID:            id,
		UserID:        userID,
		Status:        domain.OrderPending,
		PaymentStatus: domain.OrderPaymentPending,
		TotalAmount:   decimal.RequireFromString("12.50"),
		Currency:      "OMR",
	}).Error)
}

func seedSession(t *testing.T, db *gorm.DB, s *domain.PaymentSession) {
	t.Helper()
	require.NoError(t, repository.NewPaymentSessionRepository(db).Create(context.Background(), s))
}

func testSnapshot() *domain.SubscriptionSnapshot {
	return &domain.SubscriptionSnapshot{
		MealIDs:      []int64{11, 12},
		DeliveryDays: []string{"wednesday", "sunday"},
		StartDate:    "2024-01-03",
	}
}
