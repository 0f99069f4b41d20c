package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	authhandler "github.com/pharmapsy/pharmapsy-backend/internal/auth/handler"
	"github.com/pharmapsy/pharmapsy-backend/internal/auth/jwt"
	authservice "github.com/pharmapsy/pharmapsy-backend/internal/auth/service"
	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/app"
	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/consumers"
	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/handler"
	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/scheduler"
	"github.com/pharmapsy/pharmapsy-backend/pkg/config"
	"github.com/pharmapsy/pharmapsy-backend/pkg/httputil"
	"github.com/pharmapsy/pharmapsy-backend/pkg/i18n"
	"github.com/pharmapsy/pharmapsy-backend/pkg/logger"
)

const serviceName = "pharmapsy-api"

func main() {
	// A missing .env file is fine; the environment may already be set
	_ = godotenv.Load()

	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().Msg("starting PharmaPsy API")

	a, err := app.Open(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize application")
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	applied, err := a.Migrate(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}
	if applied > 0 {
		log.Info().Int("count", applied).Msg("migrations applied")
	}

	// The current year needs a baseline before any movement is reconciled
	if _, created, err := a.Inventory.Bootstrap(ctx); err != nil {
		log.Error().Err(err).Msg("failed to bootstrap initial stock")
	} else if created {
		log.Info().Msg("initial stock created for the current year")
	}

	// Background jobs
	var jobs *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		jobs, err = scheduler.New(cfg, a.Backups, a.Settings, a.Events, a.Metrics, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create scheduler")
		}
		if err := jobs.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start scheduler")
		}
	}

	// Backup requests from pharmapsy-cli
	if a.RabbitMQ != nil {
		backupConsumer, err := consumers.NewBackupConsumer(a.RabbitMQ, a.Backups, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create backup consumer")
		}
		if err := backupConsumer.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start backup consumer")
		}
	}

	authService := authservice.NewAuthService(&cfg.Auth, jwt.NewManager(&cfg.JWT), log)
	authHandler := authhandler.NewAuthHandler(authService, log)
	if !cfg.Auth.Enabled {
		log.Warn().Msg("authentication is disabled")
	}

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(a.Metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "Accept-Language"},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(i18n.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := a.Health(r.Context())
		health["status"] = "healthy"
		health["service"] = serviceName
		httputil.JSON(w, http.StatusOK, health)
	})
	r.Handle("/metrics", a.Metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimit.Enabled {
			r.Use(httputil.RateLimit(cfg.RateLimit.Rate, cfg.RateLimit.Capacity))
		}

		r.Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(authHandler.Authenticate)
			r.Get("/auth/me", authHandler.Me)
			handler.Routes(r, a.Services(), log)
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Stop jobs and consumers before draining requests
	cancel()
	if jobs != nil {
		jobs.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
