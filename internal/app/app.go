// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/authorshaven/notify/internal/config"
	"github.com/authorshaven/notify/internal/directory"
	directorypostgres "github.com/authorshaven/notify/internal/directory/postgres"
	"github.com/authorshaven/notify/internal/events"
	"github.com/authorshaven/notify/internal/identity/jwt"
	"github.com/authorshaven/notify/internal/notifications"
	"github.com/authorshaven/notify/internal/notifications/email"
	notificationspostgres "github.com/authorshaven/notify/internal/notifications/postgres"
	"github.com/authorshaven/notify/internal/pkg/ctxlog"
	"github.com/authorshaven/notify/internal/pkg/httputil"
	"github.com/authorshaven/notify/internal/pkg/metrics"
	"github.com/authorshaven/notify/internal/pkg/postgres"
	"github.com/authorshaven/notify/internal/version"
	"github.com/authorshaven/notify/migrations"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	server        *http.Server
	metricsServer *http.Server
	metricsCancel context.CancelFunc
	mailWorker    *notifications.Worker
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	if cfg.Database.Migrate {
		if err := postgres.Migrate(cfg.Database.URL, migrations.FS, "."); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		db:            db,
		metricsCancel: metricsCancel,
	}

	go app.collectDBMetrics(metricsCtx)

	router, mailWorker, err := app.setupRouter(metricsCtx)
	if err != nil {
		db.Close()
		metricsCancel()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	app.mailWorker = mailWorker

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	// Start metrics server in background
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	// Start main server
	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	a.metricsCancel()

	// Stop mail worker first so in-flight sends finish cleanly
	if a.mailWorker != nil {
		a.mailWorker.Stop()
	}

	// Shutdown both servers in parallel
	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	a.db.Close()

	return errors.Join(errs...)
}

func (a *App) collectDBMetrics(ctx context.Context) {
	// Collect immediately on start
	metrics.RecordDBPoolMetrics(a.db)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) collectQueueMetrics(ctx context.Context, repo notifications.Repository) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats, err := repo.MailQueueStats(ctx)
			if err != nil {
				slog.Error("failed to get queue stats", "error", err)
				continue
			}
			notifications.RecordQueueStats(stats)
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// MailWorker returns the mail worker instance. Used in tests.
func (a *App) MailWorker() *notifications.Worker {
	return a.mailWorker
}

func (a *App) setupRouter(ctx context.Context) (*chi.Mux, *notifications.Worker, error) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	directoryRepo := directorypostgres.NewRepository(a.db)
	directoryService := directory.NewService(directoryRepo)

	notificationsRepo := notificationspostgres.NewRepository(a.db)

	formatter, err := notifications.NewFormatter(a.config.Notifications.BaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("create formatter: %w", err)
	}

	emailSender, err := email.NewSender(email.Config{
		Enabled:      a.config.Notifications.Mail.Enabled,
		SMTPHost:     a.config.Notifications.Mail.SMTPHost,
		SMTPPort:     a.config.Notifications.Mail.SMTPPort,
		SMTPUser:     a.config.Notifications.Mail.SMTPUser,
		SMTPPassword: a.config.Notifications.Mail.SMTPPassword,
		FromAddress:  a.config.Notifications.Mail.FromAddress,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create email sender: %w", err)
	}

	if !a.config.Notifications.Mail.Enabled {
		slog.Warn("email sender is disabled: queued activity emails will not be sent")
	}

	dispatcher := notifications.NewDispatcher(emailSender, a.config.Notifications.Mail.SendTimeout)

	resolver := notifications.NewResolver(directoryService, notificationsRepo)
	notifier := notifications.NewNotifier(
		notificationsRepo,
		resolver,
		formatter,
		a.config.Notifications.Retry.MaxAttempts,
	)

	bus := events.NewBus()
	bus.Subscribe(notifier)

	mailWorker := notifications.NewWorker(notifications.WorkerConfig{
		BatchSize:         a.config.Notifications.Worker.BatchSize,
		PollInterval:      a.config.Notifications.Worker.PollInterval,
		MaxAttempts:       a.config.Notifications.Retry.MaxAttempts,
		InitialBackoff:    a.config.Notifications.Retry.InitialBackoff,
		MaxBackoff:        a.config.Notifications.Retry.MaxBackoff,
		BackoffMultiplier: a.config.Notifications.Retry.BackoffMultiplier,
		NumWorkers:        a.config.Notifications.Worker.NumWorkers,
		SendsPerSecond:    a.config.Notifications.Mail.SendsPerSecond,
	}, notificationsRepo, dispatcher)
	mailWorker.Start(ctx)

	go a.collectQueueMetrics(ctx, notificationsRepo)

	notificationsService := notifications.NewService(notificationsRepo)
	notificationsHandler := notifications.NewHandler(notificationsService)

	jwtAuth := jwt.NewAuthenticator(jwt.Config{
		SecretKey: a.config.Auth.JWTSecret,
	})

	eventsHandler := events.NewHTTPHandler(bus)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(httputil.AuthMiddleware(jwtAuth))
			notificationsHandler.RegisterRoutes(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(httputil.ServiceTokenMiddleware(a.config.Auth.ServiceToken))
			eventsHandler.RegisterRoutes(r)
		})
	})

	return r, mailWorker, nil
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
