package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/fkhayef/smartrewards/docs"
	"github.com/fkhayef/smartrewards/internal/config"
	"github.com/fkhayef/smartrewards/internal/database"
	"github.com/fkhayef/smartrewards/internal/mukando"
	"github.com/fkhayef/smartrewards/internal/notification"
	"github.com/fkhayef/smartrewards/internal/points"
	"github.com/fkhayef/smartrewards/internal/scheduler"
	"github.com/fkhayef/smartrewards/internal/storage/memory"
	"github.com/fkhayef/smartrewards/pkg/logging"
	"github.com/fkhayef/smartrewards/pkg/metrics"
	mw "github.com/fkhayef/smartrewards/pkg/middleware"
)

// @title        Smart Rewards API
// @version      1.0
// @description  Mukando savings groups on top of loyalty points.
// @BasePath     /api/v1
func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage
	var (
		groupStore        mukando.Store
		pointReader       points.Reader
		notificationStore notification.Store
	)
	if cfg.UseMemoryStore() {
		mem := memory.New()
		seedDemoData(mem)
		groupStore, pointReader, notificationStore = mem, mem, mem.Notifications()
		slog.Warn("DATABASE_URL not set, using in-memory store")
	} else {
		db, err := database.NewPostgresConnection(cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("Connected to database successfully")

		if cfg.RunMigrations {
			if err := database.Migrate(ctx, db); err != nil {
				slog.Error("Failed to apply migrations", "error", err)
				os.Exit(1)
			}
		}

		groupStore = mukando.NewPostgresStore(db)
		pointReader = points.NewRepository(db)
		notificationStore = notification.NewRepository(db)
	}

	// Notification feature
	notificationService := notification.NewService(notificationStore)
	notificationHandler := notification.NewHandler(notificationService)

	// Points feature
	pointsService := points.NewService(pointReader)
	pointsHandler := points.NewHandler(pointsService)

	// Savings group feature
	groupService := mukando.NewService(groupStore,
		mukando.WithNotifier(notificationService),
		mukando.WithLogger(slog.Default().With("component", "mukando")),
		mukando.WithMinPayoutInterval(cfg.PayoutMinInterval),
	)
	groupHandler := mukando.NewHandler(groupService)

	// Payout sweep
	jobs := scheduler.NewJobs(groupService, slog.Default().With("component", "scheduler"), 10*time.Minute)
	sched := scheduler.New(jobs, slog.Default().With("component", "cron"), cfg.PayoutSweepSchedule)
	if err := sched.Start(); err != nil {
		slog.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	auth := mw.NewAuthenticator(cfg.JWTSecret, cfg.AuthDevMode)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(mw.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.InstrumentHandler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor-ID", "X-Actor-Kind", "X-Internal-API-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", metrics.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)

			r.Mount("/groups", groupHandler.Routes())
			r.Mount("/business/groups", groupHandler.BusinessRoutes())
			r.Mount("/points", pointsHandler.Routes())
			r.Mount("/notifications", notificationHandler.Routes())
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireInternalKey(cfg.InternalAPIKey))
			r.Mount("/admin", groupHandler.AdminRoutes())
		})
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}

	select {
	case <-sched.Stop().Done():
	case <-shutdownCtx.Done():
		slog.Warn("Payout sweep still running at shutdown")
	}
}

// seedDemoData gives the in-memory store a business and a few funded customers.
func seedDemoData(mem *memory.Store) {
	mem.AddBusiness(1)
	for id := int64(1); id <= 3; id++ {
		mem.AddCustomer(id, 1000)
	}
	slog.Info("Seeded in-memory store", "business_id", 1, "customers", 3, "opening_balance", 1000)
}
