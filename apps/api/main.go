package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	apikeyhandler "github.com/repairhero/platform/domains/apikeys/be/handler"
	apikeyrepo "github.com/repairhero/platform/domains/apikeys/be/repo"
	apikeyservice "github.com/repairhero/platform/domains/apikeys/be/service"
	customerhandler "github.com/repairhero/platform/domains/customers/be/handler"
	customerrepo "github.com/repairhero/platform/domains/customers/be/repo"
	customerservice "github.com/repairhero/platform/domains/customers/be/service"
	sessionhandler "github.com/repairhero/platform/domains/sessions/be/handler"
	sessionrepo "github.com/repairhero/platform/domains/sessions/be/repo"
	sessionservice "github.com/repairhero/platform/domains/sessions/be/service"
	tenanthandler "github.com/repairhero/platform/domains/tenants/be/handler"
	tenantrepo "github.com/repairhero/platform/domains/tenants/be/repo"
	tenantservice "github.com/repairhero/platform/domains/tenants/be/service"
	platformauth "github.com/repairhero/platform/platform/go/auth"
	"github.com/repairhero/platform/platform/go/authz"
	"github.com/repairhero/platform/platform/go/logging"
	"github.com/repairhero/platform/platform/go/metrics"
	platformmw "github.com/repairhero/platform/platform/go/middleware"
	"github.com/repairhero/platform/platform/go/persistence"
	"github.com/repairhero/platform/platform/go/tenant"
	tenantmw "github.com/repairhero/platform/platform/go/tenant/middleware"
)

type config struct {
	Port            int           `env:"PORT" envDefault:"8080"`
	DatabaseURL     string        `env:"DATABASE_URL,required"`
	SessionSecret   string        `env:"SESSION_TOKEN_SECRET,required"`
	SessionIssuer   string        `env:"SESSION_TOKEN_ISSUER" envDefault:"repairhero"`
	SessionTTL      time.Duration `env:"SESSION_TOKEN_TTL" envDefault:"12h"`
	DefaultTenant   string        `env:"DEFAULT_TENANT_SUBDOMAIN"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	RunMigrations   bool          `env:"RUN_MIGRATIONS" envDefault:"false"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	MaxDBConns      int32         `env:"DB_MAX_CONNS" envDefault:"10"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// Local development convenience; missing .env is not an error.
	_ = godotenv.Load()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	logger, err := logging.NewLogger(logging.Config{Component: "api-server", Level: cfg.LogLevel})
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.RunMigrations {
		if err := persistence.Migrate(migrateURL(cfg.DatabaseURL)); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("migrations applied")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{
		ConnString: cfg.DatabaseURL,
		MaxConns:   cfg.MaxDBConns,
	})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer persistence.ClosePool(pool)

	tenantStore, err := persistence.NewTenantStore(pool)
	if err != nil {
		return err
	}
	userStore, err := persistence.NewUserStore(pool)
	if err != nil {
		return err
	}
	roleStore, err := persistence.NewRoleStore(pool)
	if err != nil {
		return err
	}
	apiKeyStore, err := persistence.NewAPIKeyStore(pool)
	if err != nil {
		return err
	}
	customerStore, err := persistence.NewCustomerStore(pool)
	if err != nil {
		return err
	}

	tokens, err := platformauth.NewTokenIssuer(cfg.SessionSecret, cfg.SessionIssuer, cfg.SessionTTL)
	if err != nil {
		return fmt.Errorf("build token issuer: %w", err)
	}

	httpMetrics := metrics.NewHTTPMetrics("api-server")
	authenticator := platformauth.NewAuthenticator(apiKeyStore, userStore, tokens, logger, httpMetrics.AuthFailure)
	resolver := tenant.NewResolver(tenantStore, cfg.DefaultTenant)
	evaluator := authz.NewEvaluator(roleStore)

	tenantsHandler := tenanthandler.New(
		tenantservice.New(tenantrepo.NewPostgresRepository(tenantStore)), logger)
	apiKeysHandler := apikeyhandler.New(
		apikeyservice.New(apikeyrepo.NewPostgresRepository(apiKeyStore, roleStore)), evaluator, logger)
	customersHandler := customerhandler.New(
		customerservice.New(customerrepo.NewPostgresRepository(customerStore)), evaluator, logger)
	sessionsHandler := sessionhandler.New(
		sessionservice.New(sessionrepo.NewPostgresRepository(userStore, tenantStore), tokens), logger)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(platformmw.DefaultCORS())
	r.Use(httpMetrics.Middleware)
	r.Use(logging.RequestLogger(logger))
	r.Use(authenticator.Middleware)
	r.Use(tenantmw.WithTenant(resolver, userStore, tenantmw.DefaultTenantOptionalPaths, logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", sessionsHandler.Routes)
		r.Route("/tenants", tenantsHandler.Routes)
		r.Route("/api-keys", apiKeysHandler.Routes)
		r.Route("/customers", customersHandler.Routes)
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", zap.Int("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// migrateURL rewrites the runtime DSN scheme into the one golang-migrate's
// pgx/v5 driver registers under.
func migrateURL(databaseURL string) string {
	if strings.HasPrefix(databaseURL, "postgres://") {
		return "pgx5://" + strings.TrimPrefix(databaseURL, "postgres://")
	}
	if strings.HasPrefix(databaseURL, "postgresql://") {
		return "pgx5://" + strings.TrimPrefix(databaseURL, "postgresql://")
	}
	return databaseURL
}
