package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"storeconsole/internal/catalog"
	"storeconsole/internal/compose"
	"storeconsole/internal/domain"
	"storeconsole/internal/gateway"
	"storeconsole/internal/pricing"
	"storeconsole/internal/session"
	"storeconsole/internal/store"
)

var (
	ErrNoWorkspace     = errors.New("no workspace open for this session")
	ErrUnauthenticated = errors.New("no authenticated session")
	ErrForbidden       = errors.New("admin role required")
	ErrInvalidInput    = errors.New("invalid input")
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	PageSize int
	Location *time.Location
	Now      func() time.Time
}

// Service owns the per-session order and debt workspaces and forwards
// everything else to the store backend.
type Service struct {
	backend  store.Backend
	gateway  *gateway.Gateway
	sessions session.Store
	pageSize int
	loc      *time.Location
	now      func() time.Time

	mu     sync.Mutex
	orders map[string]*orderWorkspace
	debts  map[string]*debtWorkspace
}

type orderWorkspace struct {
	mu       sync.Mutex
	client   string
	composer *compose.OrderComposer
}

type debtWorkspace struct {
	mu       sync.Mutex
	client   string
	composer *compose.DebtComposer
	orders   *catalog.OrderSnapshot
}

func New(backend store.Backend, sessions session.Store, opts Options) *Service {
	if opts.PageSize < 1 {
		opts.PageSize = catalog.DefaultPageSize
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		backend:  backend,
		gateway:  gateway.New(backend, backend),
		sessions: sessions,
		pageSize: opts.PageSize,
		loc:      opts.Location,
		now:      opts.Now,
		orders:   make(map[string]*orderWorkspace),
		debts:    make(map[string]*debtWorkspace),
	}
}

func (s *Service) today() time.Weekday {
	return pricing.Today(s.now, s.loc)
}

func (s *Service) sessionID(ctx context.Context) (string, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.SessionID == "" {
		return "", ErrUnauthenticated
	}
	return actor.SessionID, nil
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return ErrUnauthenticated
	}
	if actor.Role != "admin" {
		return ErrForbidden
	}
	return nil
}

// transport tags a backend failure so callers can tell it apart from a
// local rule violation.
func transport(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", gateway.ErrTransport, err)
}

func (s *Service) ListWorkers(ctx context.Context) ([]domain.Worker, error) {
	workers, err := s.backend.ListWorkers(ctx)
	return workers, transport(err)
}

// ListOrders pages the order history, limited to today's orders when the
// session prefers it.
func (s *Service) ListOrders(ctx context.Context, page int) (domain.OrderPage, error) {
	id, err := s.sessionID(ctx)
	if err != nil {
		return domain.OrderPage{}, err
	}
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return domain.OrderPage{}, err
	}
	if page < 1 {
		page = 1
	}

	orders, err := s.backend.ListOrders(ctx, page, sess.Preferences.OnlyDailyOrders)
	if err != nil {
		return domain.OrderPage{}, transport(err)
	}
	for i := range orders.Orders {
		if orders.Orders[i].ItemsCount == 0 {
			orders.Orders[i].ItemsCount = len(orders.Orders[i].Items)
		}
	}
	return orders, nil
}

func (s *Service) SetOrderDeliveredBy(ctx context.Context, orderID string, worker string) error {
	orderID = strings.TrimSpace(orderID)
	worker = strings.TrimSpace(worker)
	if orderID == "" || worker == "" {
		return ErrInvalidInput
	}
	return transport(s.backend.SetOrderDeliveredBy(ctx, orderID, worker))
}

func (s *Service) SetOrderState(ctx context.Context, orderID string, state string) error {
	if strings.TrimSpace(orderID) == "" || !domain.IsOrderState(state) {
		return ErrInvalidInput
	}
	return transport(s.backend.SetOrderState(ctx, orderID, state))
}

func (s *Service) SetDebtState(ctx context.Context, client string, debtID string, state string) error {
	if strings.TrimSpace(client) == "" || strings.TrimSpace(debtID) == "" || !domain.IsDebtState(state) {
		return ErrInvalidInput
	}
	return transport(s.backend.SetDebtState(ctx, client, debtID, state))
}

func (s *Service) Preferences(ctx context.Context) (session.Preferences, error) {
	id, err := s.sessionID(ctx)
	if err != nil {
		return session.Preferences{}, err
	}
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return session.Preferences{}, err
	}
	return sess.Preferences, nil
}

func (s *Service) SetPreferences(ctx context.Context, prefs session.Preferences) (session.Preferences, error) {
	id, err := s.sessionID(ctx)
	if err != nil {
		return session.Preferences{}, err
	}
	sess, err := s.sessions.UpdatePreferences(ctx, id, prefs)
	if err != nil {
		return session.Preferences{}, err
	}
	return sess.Preferences, nil
}

// EndSession drops the session and any open workspaces.
func (s *Service) EndSession(ctx context.Context) error {
	id, err := s.sessionID(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.orders, id)
	delete(s.debts, id)
	s.mu.Unlock()

	if err := s.sessions.Delete(ctx, id); err != nil {
		return err
	}
	zap.L().Info("session ended", zap.String("session_id", id))
	return nil
}
