package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mealsub/internal/domain"
	"mealsub/internal/gateway"
	"mealsub/internal/notification"
	"mealsub/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var errDuplicateSettlement = errors.New("settlement already recorded")

// SettlementResult describes what Settle wrote. AlreadySettled is true when
// the order had been settled before and nothing was written.
type SettlementResult struct {
	AlreadySettled bool
	Transaction    *domain.PaymentTransaction
	Items          []domain.SubscriptionItem
}

// Settlement turns a paid session into an active order, its delivery items
// and one transaction row, all in a single database transaction.
type Settlement struct {
	db       *gorm.DB
	notifier notification.Notifier
	now      func() time.Time
	log      *logrus.Entry
}

func NewSettlement(db *gorm.DB, notifier notification.Notifier, log *logrus.Entry) *Settlement {
	if notifier == nil {
		notifier = notification.Nop{}
	}
	return &Settlement{db: db, notifier: notifier, now: time.Now, log: log.WithField("component", "settlement")}
}

func (s *Settlement) Settle(ctx context.Context, session *domain.PaymentSession, v gateway.Validation) (*SettlementResult, error) {
	if !v.Valid || session.Status != domain.SessionPaid {
		return nil, fmt.Errorf("settle session %s: %w", session.ID, ErrPaymentNotPaid)
	}
	ref, err := session.Order()
	if err != nil {
		return nil, fmt.Errorf("settle session %s: %w", session.ID, err)
	}

	now := s.now().UTC()
	res := &SettlementResult{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := repository.NewOrderRepository(tx)
		transactions := repository.NewPaymentTransactionRepository(tx)

		state, err := orders.GetForUpdate(ctx, ref)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("load order: %w", err)
		}
		if !state.Settleable() {
			res.AlreadySettled = true
			return nil
		}
		activated, err := orders.Activate(ctx, ref, now)
		if err != nil {
			return fmt.Errorf("activate order: %w", err)
		}
		if !activated {
			res.AlreadySettled = true
			return nil
		}

		if sub, ok := ref.(domain.SubscriptionRef); ok {
			items, err := s.scheduleItems(session, sub.ID)
			if err != nil {
				return err
			}
			if err := orders.CreateItems(ctx, items); err != nil {
				return fmt.Errorf("create items: %w", err)
			}
			res.Items = items
		}

		t := &domain.PaymentTransaction{
			PaymentSessionID:     session.ID,
			ModelType:            session.ModelType,
			ModelID:              session.ModelID,
			Amount:               session.Amount,
			Currency:             session.Currency,
			Gateway:              session.Gateway,
			GatewayTransactionID: gatewayTransactionID(v.GatewayData),
			Status:               domain.TransactionCompleted,
			GatewayResponse:      datatypes.JSONMap(v.GatewayData),
		}
		if err := transactions.Create(ctx, t); err != nil {
			if repository.IsUniqueViolation(err) {
				return errDuplicateSettlement
			}
			return fmt.Errorf("record transaction: %w", err)
		}
		res.Transaction = t
		return nil
	})

	log := s.log.WithFields(logrus.Fields{"session_id": session.ID, "order_type": session.ModelType, "order_id": session.ModelID})
	if errors.Is(err, errDuplicateSettlement) {
		log.Info("transaction already recorded for session, treating as settled")
		return &SettlementResult{AlreadySettled: true}, nil
	}
	if err != nil {
		log.WithError(err).Error("settlement failed, rolled back")
		return nil, fmt.Errorf("settle session %s: %w", session.ID, err)
	}
	if res.AlreadySettled {
		log.Info("order already settled")
		return res, nil
	}

	log.WithFields(logrus.Fields{"transaction_id": res.Transaction.ID, "items": len(res.Items)}).Info("payment settled")
	s.notify(ctx, session, res, now, log)
	return res, nil
}

func (s *Settlement) scheduleItems(session *domain.PaymentSession, subscriptionID int64) ([]domain.SubscriptionItem, error) {
	snap, err := session.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if snap == nil {
		s.log.WithField("session_id", session.ID).Warn("subscription session has no subscription_data, no items scheduled")
		return nil, nil
	}
	schedule, err := BuildSchedule(*snap)
	if err != nil {
		return nil, err
	}
	items := make([]domain.SubscriptionItem, 0, len(schedule))
	for _, d := range schedule {
		items = append(items, domain.SubscriptionItem{
			SubscriptionID: subscriptionID,
			MealID:         d.MealID,
			DeliveryDate:   d.Date,
			DayOfWeek:      d.Day,
			Status:         domain.ItemPending,
		})
	}
	return items, nil
}

// notify runs after commit. Failures are logged and dropped.
func (s *Settlement) notify(ctx context.Context, session *domain.PaymentSession, res *SettlementResult, at time.Time, log *logrus.Entry) {
	ev := notification.PaymentSettled{
		Type:          notification.TypePaymentSettled,
		SessionID:     session.ID,
		OrderType:     session.ModelType,
		OrderID:       session.ModelID,
		UserID:        session.UserID,
		Amount:        session.Amount,
		Currency:      session.Currency,
		Gateway:       session.Gateway,
		TransactionID: res.Transaction.ID,
		ItemsCreated:  len(res.Items),
		SettledAt:     at,
	}
	if err := s.notifier.PaymentSettled(ctx, ev); err != nil {
		log.WithError(err).Warn("settlement notification failed")
	}
}

// gatewayTransactionID picks the first non-empty of id or transaction_id.
func gatewayTransactionID(data map[string]any) *string {
	for _, key := range []string{"id", "transaction_id"} {
		if v, ok := data[key]; ok && v != nil {
			if s := fmt.Sprint(v); s != "" {
				return &s
			}
		}
	}
	return nil
}
