// Package server is the composition root: it opens the key-value backend,
// builds the account registry, cart store and session manager once per
// process, and mounts their handlers on a chi router.
//
// DEPENDENCY FLOW:
//
//	Config → KeyValueStore (sqlite | redis | memory)
//	       → AccountRegistry, CartStore → SessionManager
//	       → catalog.Client
//	       → SessionHandler, CartHandler, CatalogHandler → routes
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

	"github.com/sakif/storefront/internal/auth"
	"github.com/sakif/storefront/internal/catalog"
	"github.com/sakif/storefront/internal/handler"
	"github.com/sakif/storefront/internal/middleware"
	"github.com/sakif/storefront/internal/repository"
	"github.com/sakif/storefront/internal/repository/memory"
	redisRepo "github.com/sakif/storefront/internal/repository/redis"
	sqliteRepo "github.com/sakif/storefront/internal/repository/sqlite"
	"github.com/sakif/storefront/internal/service"
)

// Storage backends accepted in Config.Backend.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Password policies accepted in Config.PasswordHashing.
const (
	PasswordsPlain  = "plain"
	PasswordsBcrypt = "bcrypt"
)

// Config holds server configuration, filled from the environment by main.
type Config struct {
	Port            int
	Backend         string
	DBPath          string
	RedisURL        string
	RedisPrefix     string
	CatalogURL      string
	CatalogTimeout  time.Duration
	JWTSecret       string // empty: generated once and kept in the store
	TokenTTL        time.Duration
	PasswordHashing string
	ShutdownTimeout time.Duration
}

// Server represents the HTTP server and all its dependencies.
//
// The Server owns the key-value store and closes it on shutdown, after
// in-flight requests have drained.
type Server struct {
	router  *chi.Mux
	config  Config
	logger  *slog.Logger
	store   repository.KeyValueStore
	session *service.SessionManager
}

// New opens the configured backend and wires everything on top of it.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Server, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Backend, err)
	}

	s, err := NewWithStore(ctx, cfg, store, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	return s, nil
}

// NewWithStore wires the server over an already open store. The server takes
// ownership of store.
func NewWithStore(ctx context.Context, cfg Config, store repository.KeyValueStore, logger *slog.Logger) (*Server, error) {
	secret, err := tokenSecret(ctx, cfg.JWTSecret, store, logger)
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokenService(secret, cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	var passwords service.PasswordHasher
	switch cfg.PasswordHashing {
	case "", PasswordsPlain:
		passwords = auth.PlainPasswords{}
	case PasswordsBcrypt:
		passwords = auth.NewPasswordService()
	default:
		return nil, fmt.Errorf("unknown password policy %q", cfg.PasswordHashing)
	}

	registry := service.NewAccountRegistry(store, passwords, logger)
	cart := service.NewCartStore(store, logger)
	session := service.NewSessionManager(ctx, registry, cart, store, logger)
	products := catalog.New(cfg.CatalogURL, cfg.CatalogTimeout, logger)

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		store:   store,
		session: session,
	}
	s.setupRoutes(
		handler.NewSessionHandler(session, tokens, logger),
		handler.NewCartHandler(cart, products, logger),
		handler.NewCatalogHandler(products, logger),
		tokens,
	)
	return s, nil
}

func openStore(ctx context.Context, cfg Config) (repository.KeyValueStore, error) {
	switch cfg.Backend {
	case "", BackendSQLite:
		return sqliteRepo.New(cfg.DBPath)
	case BackendRedis:
		return redisRepo.New(ctx, cfg.RedisURL, cfg.RedisPrefix)
	case BackendMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz                                  → liveness
// GET    /api/session                              → current session
// POST   /api/session/register                     → register + sign in
// POST   /api/session/login                        → sign in
// POST   /api/session/logout                       → sign out
// GET    /api/cart                                 → lines + summary
// DELETE /api/cart                                 → clear
// POST   /api/cart/items                           → add
// PUT    /api/cart/items/{productID}               → set quantity
// DELETE /api/cart/items/{productID}               → remove
// POST   /api/cart/items/{productID}/increase      → +1
// POST   /api/cart/items/{productID}/decrease      → −1
// PUT    /api/cart/order                           → reorder
// GET    /api/catalog/categories                   → category names
// GET    /api/catalog/categories/{category}/products
// GET    /api/catalog/products/recent              → ?limit=4
// GET    /api/catalog/products/{id}
//
// MIDDLEWARE ORDER MATTERS: OptionalAuth runs before Logger so request logs
// carry the acting account id.
func (s *Server) setupRoutes(sessions *handler.SessionHandler, carts *handler.CartHandler, products *handler.CatalogHandler, tokens *auth.TokenService) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(auth.OptionalAuth(tokens))
	s.router.Use(middleware.Logger(s.logger))

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.Get("/", sessions.HandleGet)
			r.Post("/register", sessions.HandleRegister)
			r.Post("/login", sessions.HandleLogin)
			r.Post("/logout", sessions.HandleLogout)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", carts.HandleGet)
			r.Delete("/", carts.HandleClear)
			r.Post("/items", carts.HandleAdd)
			r.Put("/items/{productID}", carts.HandleUpdate)
			r.Delete("/items/{productID}", carts.HandleRemove)
			r.Post("/items/{productID}/increase", carts.HandleIncrease)
			r.Post("/items/{productID}/decrease", carts.HandleDecrease)
			r.Put("/order", carts.HandleReorder)
		})

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/categories", products.HandleCategories)
			r.Get("/categories/{category}/products", products.HandleByCategory)
			r.Get("/products/recent", products.HandleRecent)
			r.Get("/products/{id}", products.HandleProduct)
		})
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the key-value store.
func (s *Server) Close() error {
	return s.store.Close()
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests and
// closes the store.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("backend", s.config.Backend),
			slog.Bool("signedIn", s.session.IsAuthenticated()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		timeout := s.config.ShutdownTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
