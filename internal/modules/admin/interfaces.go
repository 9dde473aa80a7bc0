package admin

import (
	"context"

	"mealsub/internal/domain"
)

type GatewayConfigRepository interface {
	List(ctx context.Context) ([]domain.PaymentGatewayConfig, error)
	Upsert(ctx context.Context, cfg *domain.PaymentGatewayConfig) error
}

type SessionStatsRepository interface {
	CountByStatus(ctx context.Context) (map[domain.PaymentSessionStatus]int64, error)
}

// SessionExpirer runs the pending to expired sweep.
type SessionExpirer interface {
	ExpireStale(ctx context.Context) (int64, error)
}
