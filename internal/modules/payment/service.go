package payment

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/url"
	"strings"
	"time"

	"mealsub/internal/domain"
	"mealsub/internal/gateway"
	"mealsub/internal/repository"

	"github.com/lithammer/shortuuid/v3"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const callbackBasePath = "/api/v1/payments"

type Options struct {
	AppURL     string
	SessionTTL time.Duration
}

// Service runs the payment session state machine:
// pending -> paid | failed | expired. Terminal sessions never change.
type Service struct {
	sessions     sessionRepo
	transactions transactionReader
	orders       orderRepo
	gateways     *gateway.Registry
	appURL       string
	sessionTTL   time.Duration
	now          func() time.Time
	newToken     func() string
	log          *logrus.Entry
}

func NewService(sessions sessionRepo, transactions transactionReader, orders orderRepo, gateways *gateway.Registry, opts Options, log *logrus.Entry) *Service {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	return &Service{
		sessions:     sessions,
		transactions: transactions,
		orders:       orders,
		gateways:     gateways,
		appURL:       strings.TrimRight(opts.AppURL, "/"),
		sessionTTL:   opts.SessionTTL,
		now:          time.Now,
		newToken:     shortuuid.New,
		log:          log.WithField("component", "payment_service"),
	}
}

func (s *Service) Gateways() *gateway.Registry { return s.gateways }

type CreateLinkInput struct {
	UserID      int64
	Order       domain.OrderRef
	Amount      decimal.Decimal
	Currency    string
	Description string
	Gateway     string
	Snapshot    *domain.SubscriptionSnapshot
}

type CreateLinkResult struct {
	Session     *domain.PaymentSession
	PaymentLink string
}

func (s *Service) CreatePaymentLink(ctx context.Context, in CreateLinkInput) (*CreateLinkResult, error) {
	if !in.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if len(currency) != 3 {
		return nil, ErrInvalidCurrency
	}
	if in.Order == nil {
		return nil, domain.ErrInvalidOrderRef
	}

	order, err := s.orders.Get(ctx, in.Order)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("load order: %w", err)
	}
	if in.UserID != 0 && order.UserID != in.UserID {
		return nil, ErrForbidden
	}
	if !order.Settleable() {
		return nil, ErrOrderNotPayable
	}

	cancelToken := s.newToken()
	data := map[string]any{domain.CancelTokenKey: cancelToken}
	if in.Order.Kind() == domain.OrderKindSubscription {
		if err := ValidateSnapshot(in.Snapshot); err != nil {
			return nil, err
		}
		data[domain.SnapshotKey] = in.Snapshot.ToMap()
	}

	gw := s.gateways.Active()
	if in.Gateway != "" {
		if gw, err = s.gateways.Get(in.Gateway); err != nil {
			return nil, err
		}
	}

	description := strings.TrimSpace(in.Description)
	if description == "" {
		description = fmt.Sprintf("%s order #%d", in.Order.Kind(), in.Order.OrderID())
	}

	link, err := gw.CreatePaymentLink(ctx, gateway.LinkRequest{
		Amount:      in.Amount,
		Currency:    currency,
		Description: description,
		SuccessURL:  s.callbackURL("success", in.Order, nil),
		CancelURL:   s.callbackURL("cancel", in.Order, url.Values{"cancel_token": {cancelToken}}),
		Metadata: gateway.Metadata{
			OrderType: string(in.Order.Kind()),
			OrderID:   in.Order.OrderID(),
			UserID:    order.UserID,
		},
	})
	if err != nil {
		s.log.WithFields(logrus.Fields{"gateway": gw.Name(), "order": domain.FormatOrderRef(in.Order)}).WithError(err).Error("create payment link failed")
		return nil, fmt.Errorf("create payment link: %w", err)
	}

	now := s.now().UTC()
	session := &domain.PaymentSession{
		ID:          link.SessionID,
		UserID:      order.UserID,
		ModelType:   string(in.Order.Kind()),
		ModelID:     in.Order.OrderID(),
		Gateway:     gw.Name(),
		Amount:      in.Amount,
		Currency:    currency,
		Status:      domain.SessionPending,
		PaymentLink: link.URL,
		GatewayData: domain.MergeGatewayData(data, link.GatewayData),
		ExpiresAt:   now.Add(s.sessionTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("save payment session: %w", err)
	}
	s.log.WithFields(logrus.Fields{"session_id": session.ID, "gateway": session.Gateway, "order": domain.FormatOrderRef(in.Order)}).Info("payment link created")
	return &CreateLinkResult{Session: session, PaymentLink: link.URL}, nil
}

func (s *Service) callbackURL(kind string, ref domain.OrderRef, q url.Values) string {
	if q == nil {
		q = url.Values{}
	}
	q.Set("order_type", string(ref.Kind()))
	q.Set("order_id", fmt.Sprintf("%d", ref.OrderID()))
	return s.appURL + callbackBasePath + "/" + kind + "?" + q.Encode()
}

type ValidationResult struct {
	Validation gateway.Validation
	Session    *domain.PaymentSession
}

// ValidatePayment asks the owning gateway about a pending session and stores
// the outcome. It never settles.
func (s *Service) ValidatePayment(ctx context.Context, sessionID string) (*ValidationResult, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status.IsTerminal() {
		return storedOutcome(session), nil
	}

	log := s.log.WithFields(logrus.Fields{"session_id": session.ID, "gateway": session.Gateway})
	now := s.now().UTC()
	if session.IsExpiredAt(now) {
		changed, err := s.sessions.UpdatePending(ctx, session.ID, repository.SessionUpdate{Status: domain.SessionExpired})
		if err != nil {
			return nil, fmt.Errorf("expire session: %w", err)
		}
		if !changed {
			return s.reread(ctx, session.ID)
		}
		log.Info("payment session expired")
		session.Status = domain.SessionExpired
		return &ValidationResult{
			Validation: gateway.Validation{Valid: false, Status: domain.SessionExpired, GatewayData: session.GatewayData},
			Session:    session,
		}, nil
	}

	gw, err := s.gateways.Get(session.Gateway)
	if err != nil {
		return nil, err
	}
	v := gw.ValidatePayment(ctx, session.ID)
	v.Status = normalizeStatus(v.Status)
	merged := domain.MergeGatewayData(session.GatewayData, v.GatewayData)

	upd := repository.SessionUpdate{Status: v.Status, GatewayData: merged}
	if v.ErrorMessage != "" {
		merged["last_error"] = v.ErrorMessage
	}
	if v.Retryable && v.Status == domain.SessionFailed {
		// no answer from the provider, keep the session open for a retry
		upd.Status = domain.SessionPending
		v.Status = domain.SessionPending
		v.Valid = false
		log.WithField("error", v.ErrorMessage).Warn("gateway validation failed, session left pending")
	}
	if upd.Status == domain.SessionPaid {
		upd.PaidAt = &now
	}

	changed, err := s.sessions.UpdatePending(ctx, session.ID, upd)
	if err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	if !changed {
		log.Info("session changed concurrently, returning stored state")
		return s.reread(ctx, session.ID)
	}

	session.Status = upd.Status
	session.GatewayData = merged
	if upd.PaidAt != nil {
		session.PaidAt = upd.PaidAt
	}
	log.WithField("status", session.Status).Info("payment session validated")
	return &ValidationResult{Validation: v, Session: session}, nil
}

// Stored returns the persisted outcome of a session without asking the gateway.
func (s *Service) Stored(ctx context.Context, id string) (*ValidationResult, error) {
	return s.reread(ctx, id)
}

func (s *Service) reread(ctx context.Context, id string) (*ValidationResult, error) {
	session, err := s.getSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return storedOutcome(session), nil
}

func (s *Service) getSession(ctx context.Context, id string) (*domain.PaymentSession, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return session, nil
}

func storedOutcome(session *domain.PaymentSession) *ValidationResult {
	return &ValidationResult{
		Validation: gateway.Validation{
			Valid:       session.Status == domain.SessionPaid,
			Status:      session.Status,
			GatewayData: session.GatewayData,
		},
		Session: session,
	}
}

func normalizeStatus(st domain.PaymentSessionStatus) domain.PaymentSessionStatus {
	switch st {
	case domain.SessionPaid, domain.SessionPending, domain.SessionFailed, domain.SessionExpired:
		return st
	default:
		return domain.SessionFailed
	}
}

// CancelPayment fails the pending session of the order whose cancel token
// matches. The order itself stays pending so a new link can be created.
func (s *Service) CancelPayment(ctx context.Context, ref domain.OrderRef, token string) (*domain.PaymentSession, error) {
	if token == "" {
		return nil, ErrInvalidCancelToken
	}
	sessions, err := s.sessions.ListForOrder(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	var session *domain.PaymentSession
	pending := 0
	for i := range sessions {
		if sessions[i].Status != domain.SessionPending {
			continue
		}
		pending++
		if subtle.ConstantTimeCompare([]byte(sessions[i].CancelToken()), []byte(token)) == 1 {
			session = &sessions[i]
			break
		}
	}
	if pending == 0 {
		return nil, ErrSessionNotFound
	}
	if session == nil {
		s.log.WithField("order", domain.FormatOrderRef(ref)).Warn("cancel redirect with unknown token")
		return nil, ErrInvalidCancelToken
	}

	data := domain.MergeGatewayData(session.GatewayData, map[string]any{"cancelled_at": s.now().UTC().Format(time.RFC3339)})
	changed, err := s.sessions.UpdatePending(ctx, session.ID, repository.SessionUpdate{Status: domain.SessionFailed, GatewayData: data})
	if err != nil {
		return nil, fmt.Errorf("cancel session: %w", err)
	}
	if !changed {
		return s.getSession(ctx, session.ID)
	}
	if err := s.orders.MarkPaymentFailed(ctx, ref); err != nil {
		return nil, fmt.Errorf("mark order payment failed: %w", err)
	}
	session.Status = domain.SessionFailed
	session.GatewayData = data
	s.log.WithFields(logrus.Fields{"session_id": session.ID, "order": domain.FormatOrderRef(ref)}).Info("payment cancelled")
	return session, nil
}

// SessionForCallback resolves the session a redirect refers to: the given id
// when it belongs to the order, else the order's latest session.
func (s *Service) SessionForCallback(ctx context.Context, ref domain.OrderRef, sessionID string) (*domain.PaymentSession, error) {
	if sessionID != "" {
		session, err := s.getSession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if session.ModelType != string(ref.Kind()) || session.ModelID != ref.OrderID() {
			return nil, ErrSessionNotFound
		}
		return session, nil
	}
	session, err := s.sessions.LatestForOrder(ctx, ref)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return session, nil
}

type History struct {
	Sessions     []domain.PaymentSession     `json:"sessions"`
	Transactions []domain.PaymentTransaction `json:"transactions"`
}

// History returns the order's sessions and transactions, newest first.
func (s *Service) History(ctx context.Context, ref domain.OrderRef) (*History, error) {
	sessions, err := s.sessions.ListForOrder(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	txs, err := s.transactions.ListForOrder(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return &History{Sessions: sessions, Transactions: txs}, nil
}

// OrderOwner returns the user id that owns the order.
func (s *Service) OrderOwner(ctx context.Context, ref domain.OrderRef) (int64, error) {
	order, err := s.orders.Get(ctx, ref)
	if err != nil {
		if repository.IsNotFound(err) {
			return 0, ErrOrderNotFound
		}
		return 0, err
	}
	return order.UserID, nil
}

// ExpireStale moves every overdue pending session to expired.
func (s *Service) ExpireStale(ctx context.Context) (int64, error) {
	n, err := s.sessions.ExpireStale(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("expire stale sessions: %w", err)
	}
	if n > 0 {
		s.log.WithField("count", n).Info("expired stale payment sessions")
	}
	return n, nil
}
