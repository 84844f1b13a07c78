package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"identity_service/internal/auth"
	"identity_service/internal/config"
	"identity_service/internal/http_server/handlers/login"
	"identity_service/internal/http_server/handlers/logout"
	"identity_service/internal/http_server/handlers/refresh"
	"identity_service/internal/http_server/handlers/register"
	"identity_service/internal/http_server/handlers/requestcode"
	"identity_service/internal/http_server/handlers/user"
	"identity_service/internal/http_server/middleware/authn"
	jwtlib "identity_service/internal/lib/jwt"
	rateLimit "identity_service/internal/middleware/ratelimit"
	"identity_service/internal/rabbitmq"
	"identity_service/internal/storage/postgres"
	redisrepo "identity_service/internal/storage/redis"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator/v10"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.MustLoad("./config/config.yaml")

	log := setupLogger(cfg.Env)

	log.Info("starting identity service", slog.String("env", cfg.Env))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("Shutdown signal received")
		cancel()
	}()

	storage, err := postgres.New(ctx, cfg)
	if err != nil {
		log.Error("failed to connect postgres", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer storage.Close()

	limiter, err := redisrepo.New(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Error("failed to connect redis", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer limiter.Close()

	msgBroker, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
	if err != nil {
		log.Error("failed to connect rabbitmq", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer msgBroker.Close()

	policy := jwtlib.Policy{
		Secret:   cfg.Tokens.Secret,
		Issuer:   cfg.Tokens.Issuer,
		Audience: cfg.Tokens.Audience,
		TokenTTL: cfg.Tokens.AccessTokenTTL,
	}

	authService := auth.New(
		log,
		storage,
		storage,
		storage,
		storage,
		msgBroker,
		limiter,
		policy,
		cfg.Tokens.AccessCodeTTL,
		cfg.Tokens.CodeRequestCool,
	)

	router := setupRouter(log, authService, policy)

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server is running")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed", slog.String("err", err.Error()))
			cancel()
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", slog.String("err", err.Error()))
	} else {
		log.Info("Server stopped gracefully")
	}

	log.Info("Main service stopped")
}

func setupRouter(
	log *slog.Logger,
	authService *auth.Auth,
	policy jwtlib.Policy,
) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	validate := validator.New()

	r.With(rateLimit.Register()).Post("/register",
		register.New(log, validate, authService),
	)
	r.With(rateLimit.RequestCode()).Post("/auth/code",
		requestcode.New(log, validate, authService),
	)
	r.With(rateLimit.Login()).Post("/auth/login",
		login.New(log, validate, authService),
	)
	r.With(rateLimit.Refresh()).Post("/auth/refresh",
		refresh.New(log, validate, authService),
	)
	r.With(rateLimit.Logout()).Post("/auth/logout",
		logout.New(log, validate, authService),
	)

	r.Route("/user", func(r chi.Router) {
		r.Use(authn.New(log, policy))
		r.Get("/", user.New(log, authService))
		r.Get("/id", user.ID(log))
		r.Get("/name", user.Name(log))
	})

	return r
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
