package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"mealsub/internal/domain"
	"mealsub/internal/gateway"

	"github.com/sirupsen/logrus"
)

var ErrUnknownGateway = errors.New("unknown gateway")

type Service struct {
	configs  GatewayConfigRepository
	sessions SessionStatsRepository
	expirer  SessionExpirer
	log      *logrus.Entry
}

func NewService(configs GatewayConfigRepository, sessions SessionStatsRepository, expirer SessionExpirer, log *logrus.Entry) *Service {
	return &Service{
		configs:  configs,
		sessions: sessions,
		expirer:  expirer,
		log:      log.WithField("component", "admin"),
	}
}

// -------------------- Gateways --------------------

func (s *Service) ListGatewayConfigs(ctx context.Context) ([]GatewayConfigView, error) {
	rows, err := s.configs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list gateway configs: %w", err)
	}
	out := make([]GatewayConfigView, 0, len(rows))
	for _, row := range rows {
		out = append(out, GatewayConfigView{
			Name:        row.Name,
			DisplayName: row.DisplayName,
			IsActive:    row.IsActive,
			Mode:        row.Mode,
			SortOrder:   row.SortOrder,
			Credentials: maskCredentials(row.Credentials),
			UpdatedAt:   row.UpdatedAt,
		})
	}
	return out, nil
}

// UpsertGatewayConfig stores a gateway definition. Active definitions must
// carry complete credentials. The running registry is not reloaded.
func (s *Service) UpsertGatewayConfig(ctx context.Context, name string, req UpsertGatewayRequest) (*domain.PaymentGatewayConfig, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !isKnownGateway(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGateway, name)
	}
	mode := req.Mode
	if mode == "" {
		mode = "sandbox"
	}
	cfg := &domain.PaymentGatewayConfig{
		Name:        name,
		DisplayName: strings.TrimSpace(req.DisplayName),
		IsActive:    req.IsActive,
		Mode:        mode,
		SortOrder:   req.SortOrder,
		Credentials: req.Credentials,
	}
	if cfg.DisplayName == "" {
		cfg.DisplayName = name
	}
	if cfg.IsActive {
		if _, err := gateway.Build(*cfg, http.DefaultClient); err != nil {
			return nil, err
		}
	}
	if err := s.configs.Upsert(ctx, cfg); err != nil {
		return nil, fmt.Errorf("upsert gateway config: %w", err)
	}
	s.log.WithFields(logrus.Fields{"gateway": name, "active": cfg.IsActive, "mode": mode}).Info("gateway config saved")
	return cfg, nil
}

// -------------------- Sessions --------------------

func (s *Service) PaymentStats(ctx context.Context) (*PaymentStats, error) {
	counts, err := s.sessions.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}
	stats := &PaymentStats{Sessions: map[string]int64{}}
	for _, st := range []domain.PaymentSessionStatus{domain.SessionPending, domain.SessionPaid, domain.SessionFailed, domain.SessionExpired} {
		stats.Sessions[string(st)] = counts[st]
	}
	for _, n := range counts {
		stats.Total += n
	}
	return stats, nil
}

func (s *Service) ExpireSessions(ctx context.Context) (int64, error) {
	return s.expirer.ExpireStale(ctx)
}

func isKnownGateway(name string) bool {
	for _, g := range domain.KnownGateways {
		if g == name {
			return true
		}
	}
	return false
}

// maskCredentials keeps the last four characters of each secret.
func maskCredentials(in map[string]any) map[string]string {
	out := make(map[string]string, len(in))
	for k, raw := range in {
		v := fmt.Sprint(raw)
		switch {
		case k == "base_url":
			out[k] = v
		case len(v) <= 4:
			out[k] = strings.Repeat("*", len(v))
		default:
			out[k] = strings.Repeat("*", len(v)-4) + v[len(v)-4:]
		}
	}
	return out
}
