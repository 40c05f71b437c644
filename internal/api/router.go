package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/pennywise/finance-client/internal/api/handler"
	"github.com/pennywise/finance-client/internal/api/middleware"
	"github.com/pennywise/finance-client/internal/core/ports"
)

// Dependencies are the services the HTTP API is built on.
type Dependencies struct {
	Profiles     ports.ProfileService
	Refresh      ports.RefreshService
	Session      ports.SessionService
	Dashboard    handler.DashboardSource
	Accounts     handler.AccountSource
	Transactions handler.TransactionSource
	Editor       handler.TransactionEditor
	Reports      handler.ReportSource
	// Checks are pinged by /health/ready, keyed by dependency name.
	Checks map[string]handler.Pinger
	// Metrics receives the HTTP metrics and is served on /metrics together
	// with the default registry. Nil registers on the default registry.
	Metrics *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if deps.Metrics != nil {
		registerer = deps.Metrics
		gatherer = prometheus.Gatherers{deps.Metrics, prometheus.DefaultGatherer}
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "finance_agent",
		Registerer: registerer,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))

	// --- Health checks and metrics (no session required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(deps.Checks)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – is the state store up?
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))

	// --- Session ---
	sessionHandler := handler.NewSessionHandler(deps.Session)
	requireSession := middleware.RequireSession(deps.Session)
	requireProfile := middleware.RequireProfile(deps.Profiles)

	e.POST("/auth/login", sessionHandler.Login)
	e.POST("/auth/logout", sessionHandler.Logout)
	e.GET("/auth/me", sessionHandler.Me, requireSession)

	// --- Profiles ---
	profileHandler := handler.NewProfileHandler(deps.Profiles)

	e.GET("/profiles", profileHandler.List, requireSession)
	e.GET("/profiles/current", profileHandler.Current, requireSession)
	e.GET("/profiles/:id", profileHandler.Get, requireSession)
	e.POST("/profiles", profileHandler.Create, requireSession)
	e.POST("/profiles/switch", profileHandler.Switch, requireSession)
	e.PUT("/profiles/:id", profileHandler.Update, requireSession)
	e.DELETE("/profiles/:id", profileHandler.Delete, requireSession)

	// --- Refresh and profile-scoped data ---
	refreshHandler := handler.NewRefreshHandler(deps.Refresh)
	dataHandler := handler.NewDataHandler(deps.Dashboard, deps.Accounts, deps.Transactions)

	e.GET("/refresh", refreshHandler.Status, requireSession)
	e.POST("/refresh", refreshHandler.Refresh, requireSession, requireProfile)
	e.GET("/dashboard", dataHandler.Dashboard, requireSession, requireProfile)
	e.GET("/accounts", dataHandler.Accounts, requireSession, requireProfile)
	e.GET("/transactions", dataHandler.Transactions, requireSession, requireProfile)
	e.GET("/transactions/categories", dataHandler.Categories, requireSession, requireProfile)

	// --- Transaction edits and reports ---
	transactionHandler := handler.NewTransactionHandler(deps.Editor)
	reportHandler := handler.NewReportHandler(deps.Reports)

	e.POST("/transactions", transactionHandler.Create, requireSession, requireProfile)
	e.PUT("/transactions/filter", transactionHandler.SetFilter, requireSession, requireProfile)
	e.PUT("/transactions/:id", transactionHandler.Update, requireSession, requireProfile)
	e.DELETE("/transactions/:id", transactionHandler.Delete, requireSession, requireProfile)
	e.GET("/reports", reportHandler.Cached, requireSession, requireProfile)
	e.GET("/reports/:kind", reportHandler.Get, requireSession, requireProfile)

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			evt := log.Info()
			if v.Error != nil {
				evt = log.Warn().Err(v.Error)
			}
			evt.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
