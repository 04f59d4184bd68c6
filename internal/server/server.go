// Package server is the composition root: it opens the database, builds every
// service and handler, mounts the routes and runs the HTTP server.
//
// DEPENDENCY FLOW:
//
//	config.Config → sqlite.DB → services → handlers → chi routes
//	                          ↘ events: realtime.Hub (+ amqp.Publisher)
//
// Each layer only receives what it needs. Services get repository
// interfaces, never *sqlite.DB; handlers get services, never repositories.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/family-finance/internal/auth"
	"github.com/sakif/family-finance/internal/config"
	"github.com/sakif/family-finance/internal/events"
	"github.com/sakif/family-finance/internal/events/amqp"
	"github.com/sakif/family-finance/internal/handler"
	"github.com/sakif/family-finance/internal/insight"
	"github.com/sakif/family-finance/internal/middleware"
	"github.com/sakif/family-finance/internal/realtime"
	sqliteRepo "github.com/sakif/family-finance/internal/repository/sqlite"
	"github.com/sakif/family-finance/internal/service"
)

const (
	shutdownTimeout = 30 * time.Second
	requestTimeout  = 30 * time.Second
	cleanupInterval = 5 * time.Minute
)

// Server owns the database, the event publishers and the router. Start closes
// all of them on shutdown.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	hub     *realtime.Hub
	broker  *amqp.Publisher // nil unless AMQP_URL is set
	limiter *middleware.RateLimiter

	passwords *auth.PasswordService
	provider  insight.Provider
	stopRelay func()
}

// Option overrides a dependency New would otherwise build from config.
type Option func(*Server)

// WithPasswordService replaces the bcrypt service (tests use a cheap cost).
func WithPasswordService(p *auth.PasswordService) Option {
	return func(s *Server) { s.passwords = p }
}

// WithInsightProvider replaces the provider chosen from GEMINI_API_KEY.
func WithInsightProvider(p insight.Provider) Option {
	return func(s *Server) { s.provider = p }
}

// New wires every dependency. cfg must already be validated.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		hub:     realtime.NewHub(logger),
		limiter: middleware.NewRateLimiter(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.setupRoutes(); err != nil {
		s.close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() error {
	tokens, err := auth.NewTokenService(s.config.Auth.JWTSecret, s.config.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	if s.passwords == nil {
		s.passwords = auth.NewPasswordService()
	}

	publisher, err := s.publisher()
	if err != nil {
		return err
	}
	if s.provider == nil {
		if s.provider, err = s.insightProvider(); err != nil {
			return err
		}
	}

	var github *auth.GitHubProvider
	if s.config.GitHub.Enabled() {
		github = auth.NewGitHubProvider(s.config.GitHub.ClientID, s.config.GitHub.ClientSecret, s.config.GitHub.CallbackURL)
	}

	// === Services ===
	sessions := service.NewSessionManager(s.db, s.db, tokens, s.passwords, s.logger)
	families := service.NewFamilyService(s.db, s.db, publisher, s.logger)
	transactions := service.NewTransactionService(s.db, families, publisher, s.logger)
	budgets := service.NewBudgetService(s.db, transactions, s.logger)
	dashboard := service.NewDashboardService(transactions, families, s.db, s.logger)
	insights := service.NewInsightService(transactions, s.provider, s.config.Insight.Timeout, s.logger)
	s.stopRelay = service.RelayProfileUpdates(sessions, families, publisher, s.logger)

	// === Handlers ===
	authHandler := handler.NewAuthHandler(sessions, github, s.config.Auth.CookieSecure, s.logger)
	transactionHandler := handler.NewTransactionHandler(transactions, s.logger)
	familyHandler := handler.NewFamilyHandler(families, s.logger)
	budgetHandler := handler.NewBudgetHandler(budgets, s.logger)
	dashboardHandler := handler.NewDashboardHandler(dashboard, insights, s.logger)

	// === Global middleware ===
	// Order matters: the request ID must exist before the logger reads it,
	// and Recoverer sits inside the logger so a panic is still logged as 500.
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/healthz", handler.HandleHealth(s.db, s.logger))

	signInLimit := middleware.RateLimit(s.limiter, middleware.RealIP, s.config.SignInRateLimit, time.Minute)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(signInLimit).Post("/signup", authHandler.HandleSignUp)
			r.With(signInLimit).Post("/signin", authHandler.HandleSignIn)
			r.Post("/signout", authHandler.HandleSignOut)
			if github != nil {
				r.Get("/github/login", authHandler.HandleGitHubLogin)
				r.Get("/github/callback", authHandler.HandleGitHubCallback)
			}
		})

		r.Get("/categories", handler.HandleCategories)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			// The WebSocket stays open indefinitely, so it is mounted
			// outside the request timeout.
			r.Get("/ws", realtime.Handler(s.hub, nil, s.logger))

			r.Group(func(r chi.Router) {
				r.Use(chimiddleware.Timeout(requestTimeout))

				r.Get("/me", authHandler.HandleMe)
				r.Put("/me", authHandler.HandleUpdateMe)

				r.Get("/transactions", transactionHandler.HandleList)
				r.Post("/transactions", transactionHandler.HandleCreate)
				r.Put("/transactions/{id}", transactionHandler.HandleUpdate)
				r.Delete("/transactions/{id}", transactionHandler.HandleDelete)

				r.Get("/families", familyHandler.HandleList)
				r.Post("/families", familyHandler.HandleCreate)
				r.Post("/families/join", familyHandler.HandleJoin)
				r.Get("/families/{id}/members", familyHandler.HandleMembers)
				r.Delete("/families/{id}/membership", familyHandler.HandleLeave)
				r.Post("/families/{id}/reconcile", familyHandler.HandleReconcile)

				r.Get("/budgets", budgetHandler.HandleList)
				r.Put("/budgets", budgetHandler.HandleSave)
				r.Delete("/budgets/{category}", budgetHandler.HandleRemove)

				r.Get("/dashboard", dashboardHandler.HandleDashboard)
				r.Get("/dashboard/members/{id}", dashboardHandler.HandleMemberDetail)
				r.Post("/insights", dashboardHandler.HandleInsight)
			})
		})
	})

	return nil
}

// publisher fans events out to connected browsers and, when configured, to
// RabbitMQ. An unreachable broker is logged and skipped; the app works
// without it.
func (s *Server) publisher() (events.Publisher, error) {
	fanout := events.Fanout{s.hub}
	if s.config.AMQP.URL == "" {
		return fanout, nil
	}

	broker, err := amqp.Dial(s.config.AMQP.URL, s.config.AMQP.Exchange, s.logger)
	if err != nil {
		s.logger.Warn("event broker unavailable, continuing without it",
			slog.String("error", err.Error()),
		)
		return fanout, nil
	}
	s.broker = broker
	return append(fanout, broker), nil
}

func (s *Server) insightProvider() (insight.Provider, error) {
	if s.config.Insight.GeminiAPIKey == "" {
		s.logger.Info("GEMINI_API_KEY not set, AI insights disabled")
		return insight.Disabled{}, nil
	}
	g, err := insight.NewGemini(context.Background(), s.config.Insight.GeminiAPIKey, s.config.Insight.GeminiModel)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests and
// releases every resource.
func (s *Server) Start() error {
	defer s.close()

	srv := &http.Server{
		Addr:              ":" + s.config.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go s.limiter.RunCleanup(ctx, cleanupInterval)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.String("port", s.config.Port),
			slog.String("database", s.config.DBPath),
			slog.Bool("github", s.config.GitHub.Enabled()),
			slog.Bool("broker", s.broker != nil),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// close releases everything New acquired. It is safe on a partially built
// Server.
func (s *Server) close() {
	if s.stopRelay != nil {
		s.stopRelay()
	}
	if s.broker != nil {
		if err := s.broker.Close(); err != nil {
			s.logger.Warn("closing event broker", slog.String("error", err.Error()))
		}
	}
	if err := s.db.Close(); err != nil {
		s.logger.Warn("closing database", slog.String("error", err.Error()))
	}
}

// Close releases the server's resources without starting it. Tests use it.
func (s *Server) Close() {
	s.close()
}
