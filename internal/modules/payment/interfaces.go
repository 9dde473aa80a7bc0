package payment

import (
	"context"
	"time"

	"mealsub/internal/domain"
	"mealsub/internal/repository"
)

type sessionRepo interface {
	Create(ctx context.Context, s *domain.PaymentSession) error
	GetByID(ctx context.Context, id string) (*domain.PaymentSession, error)
	LatestForOrder(ctx context.Context, ref domain.OrderRef, statuses ...domain.PaymentSessionStatus) (*domain.PaymentSession, error)
	ListForOrder(ctx context.Context, ref domain.OrderRef) ([]domain.PaymentSession, error)
	UpdatePending(ctx context.Context, id string, upd repository.SessionUpdate) (bool, error)
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

type transactionReader interface {
	ListForOrder(ctx context.Context, ref domain.OrderRef) ([]domain.PaymentTransaction, error)
}

type orderRepo interface {
	Get(ctx context.Context, ref domain.OrderRef) (*repository.OrderState, error)
	MarkPaymentFailed(ctx context.Context, ref domain.OrderRef) error
}
