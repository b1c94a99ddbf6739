// @title           Marketplace Auth API
// @version         1.0
// @description     Sign-in, token refresh and account endpoints of the food marketplace.
// @BasePath        /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/forkful/marketplace/internal/api"
	"github.com/forkful/marketplace/internal/core/service"
	"github.com/forkful/marketplace/internal/infrastructure/config"
	mongodb "github.com/forkful/marketplace/internal/infrastructure/db/mongo"
	redisdb "github.com/forkful/marketplace/internal/infrastructure/db/redis"
	"github.com/forkful/marketplace/internal/infrastructure/events"
	"github.com/forkful/marketplace/internal/infrastructure/http/handlers"
	"github.com/forkful/marketplace/internal/infrastructure/queue"
	"github.com/forkful/marketplace/internal/infrastructure/token"
	"github.com/forkful/marketplace/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config.Load); err != nil {
		log := bootLogger(os.Stderr)
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// bootLogger reports failures that can happen before logger.Init, such as a
// missing secret in the environment.
func bootLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Str("service", "marketplace").Logger()
}

func run(ctx context.Context, load func(context.Context) (*config.Config, error)) error {
	cfg, err := load(ctx)
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "marketplace",
	})

	// --- Stores ---
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := mongoClient.Disconnect(dctx); err != nil {
			log.Error().Err(err).Msg("mongo disconnect")
		}
	}()
	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		return err
	}

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	defer rdb.Close()

	// --- Audit pipeline ---
	streamPublisher, err := events.NewRedisStreamPublisher(rdb, logger.Component("watermill"))
	if err != nil {
		return err
	}
	defer streamPublisher.Close()

	auditService := service.NewAuditService(
		mongodb.NewAuditRepository(db),
		events.NewWatermillPublisher(streamPublisher, cfg.Audit.Stream),
		logger.Component("audit"),
	)
	dispatcher := queue.NewDispatcher(cfg.Audit.Workers, auditService, logger.Component("audit"))
	dispatcher.Start(ctx)
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := dispatcher.Shutdown(dctx); err != nil {
			log.Warn().Err(err).Msg("audit queue not fully drained")
		}
	}()

	// --- Services ---
	codec, err := token.NewCodec(cfg.Tokens())
	if err != nil {
		return err
	}
	accounts := mongodb.NewAccountRepository(db)
	guard := redisdb.NewSignInGuard(rdb, cfg.SignIn.MaxAttempts, cfg.SignIn.Window)

	authService := service.NewAuthService(accounts, codec, guard, dispatcher, logger.Component("auth"))
	accountService := service.NewAccountService(accounts, codec, dispatcher, logger.Component("accounts"))

	e := api.NewRouter(api.Dependencies{
		AuthService:    authService,
		AccountService: accountService,
		Readiness: map[string]handlers.Check{
			"mongo": handlers.MongoCheck(db),
			"redis": handlers.RedisCheck(rdb),
		},
		Log:       logger.Component("http"),
		BasePath:  cfg.APIBasePath,
		RateLimit: cfg.SignIn.RateLimit,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(sctx)
}
