// Package app assembles the finance agent from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Rhymond/go-money"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/pennywise/finance-client/internal/api"
	"github.com/pennywise/finance-client/internal/api/handler"
	"github.com/pennywise/finance-client/internal/core/domain"
	"github.com/pennywise/finance-client/internal/core/ports"
	"github.com/pennywise/finance-client/internal/core/service"
	"github.com/pennywise/finance-client/internal/infrastructure/backend"
	"github.com/pennywise/finance-client/internal/infrastructure/config"
	mongostate "github.com/pennywise/finance-client/internal/infrastructure/db/mongo"
	redisstate "github.com/pennywise/finance-client/internal/infrastructure/db/redis"
	"github.com/pennywise/finance-client/internal/infrastructure/events"
	"github.com/pennywise/finance-client/internal/infrastructure/storage"
)

const recentTransactionsPage = 50

// Agent is a fully wired finance client.
type Agent struct {
	Registry     *service.ProfileRegistry
	Session      *service.SessionService
	Coordinator  *service.RefreshCoordinator
	Dashboard    *service.DashboardStore
	Accounts     *service.AccountStore
	Transactions *service.TransactionStore
	Reports      *service.ReportStore
	Client       *backend.Client
	State        ports.KeyValueStore

	bus        *events.ProfileBus
	log        zerolog.Logger
	closers    []func(ctx context.Context) error
	metrics    *prometheus.Registry
	router     *echo.Echo
	routerOnce sync.Once
}

// New connects the state backend and builds every component. Nothing talks to
// the finance backend until Restore, Login or a profile operation runs.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Agent, error) {
	a := &Agent{log: log, metrics: prometheus.NewRegistry()}

	state, err := a.openState(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.State = state
	a.bus = events.NewProfileBus(log)

	// The client reads the session token and the current profile per request.
	a.Client = backend.NewClient(
		backend.Config{
			BaseURL:    cfg.API.BaseURL,
			Timeout:    cfg.API.Timeout,
			Attempts:   cfg.API.Attempts,
			RetryDelay: cfg.API.RetryDelay,
		},
		backend.WithLogger(log),
		backend.WithTokenSource(func() string { return a.Session.Token() }),
		backend.WithProfileScope(func() domain.ProfileID { return a.Registry.CurrentProfileID() }),
		backend.WithUnauthorizedHandler(func(ctx context.Context) { a.Session.Logout(ctx) }),
	)

	a.Registry = service.NewProfileRegistry(a.Client, state, a.bus, log, service.RegistryOptions{
		ConfirmSwitch: cfg.Refresh.ConfirmSwitch,
	})
	a.Session = service.NewSessionService(a.Client, state, a.Registry, log)
	a.Coordinator = service.NewRefreshCoordinator(a.bus, log, service.CoordinatorOptions{
		Delay:      cfg.Refresh.Delay,
		MaxWorkers: cfg.Refresh.Workers,
	})

	currency := cfg.State.DefaultCurrency
	if money.GetCurrency(currency) == nil {
		log.Warn().Str("currency", currency).Msg("unknown default currency, using USD")
		currency = money.USD
	}
	a.Dashboard = service.NewDashboardStore(a.Client, a.Registry, log)
	a.Accounts = service.NewAccountStore(a.Client, a.Registry, currency, log)
	a.Transactions = service.NewTransactionStore(a.Client, a.Registry,
		domain.TransactionFilter{Limit: recentTransactionsPage, Order: "desc"}, log)
	a.Reports = service.NewReportStore(a.Client, a.Registry, log)

	if err := service.RegisterRefreshers(a.Coordinator, a.Dashboard, a.Accounts, a.Transactions, a.Reports); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *Agent) openState(ctx context.Context, cfg *config.Config) (ports.KeyValueStore, error) {
	switch cfg.State.Backend {
	case config.StateRedis:
		client, err := redisstate.Connect(ctx, redisstate.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("open state: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		return redisstate.NewStateStore(client, cfg.State.Namespace), nil
	case config.StateMongo:
		client, db, err := mongostate.Connect(ctx, mongostate.Config{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
		})
		if err != nil {
			return nil, fmt.Errorf("open state: %w", err)
		}
		a.closers = append(a.closers, client.Disconnect)
		return mongostate.NewStateStore(db, cfg.State.Namespace), nil
	default:
		return storage.NewMemoryStore(), nil
	}
}

// Start restores a persisted session, if any, and begins listening for
// profile switches.
func (a *Agent) Start(ctx context.Context) error {
	if err := a.Coordinator.Start(ctx); err != nil {
		return err
	}
	u, err := a.Session.Restore(ctx)
	switch {
	case errors.Is(err, domain.ErrNoSession):
		a.log.Info().Msg("no persisted session, waiting for login")
		return nil
	case err != nil && u != nil:
		a.log.Warn().Err(err).Msg("session restored but profiles not loaded")
		return nil
	case err != nil:
		return err
	}
	a.log.Info().Str("user_id", u.ID).Msg("session restored")
	return nil
}

// Router returns the local HTTP API. It is built on first use; its HTTP
// metrics live in a registry owned by this agent.
func (a *Agent) Router() *echo.Echo {
	a.routerOnce.Do(func() {
		a.router = api.NewRouter(api.Dependencies{
			Profiles:     a.Registry,
			Refresh:      a.Coordinator,
			Session:      a.Session,
			Dashboard:    a.Dashboard,
			Accounts:     a.Accounts,
			Transactions: a.Transactions,
			Editor:       a.Transactions,
			Reports:      a.Reports,
			Checks:       map[string]handler.Pinger{"state": a.State},
			Metrics:      a.metrics,
		}, a.log)
	})
	return a.router
}

// Close stops the coordinator and the bus, then releases the state backend.
func (a *Agent) Close(ctx context.Context) error {
	var errs []error
	if a.Coordinator != nil {
		a.Coordinator.Close()
	}
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close bus: %w", err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
