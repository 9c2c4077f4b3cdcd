package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/teampulse/teampulse/internal/db"
	"github.com/teampulse/teampulse/internal/handlers"
	"github.com/teampulse/teampulse/internal/logger"
	"github.com/teampulse/teampulse/internal/repository"
	"github.com/teampulse/teampulse/internal/repository/postgres"
	"github.com/teampulse/teampulse/internal/repository/redisstore"
	"github.com/teampulse/teampulse/internal/service/auth"
	"github.com/teampulse/teampulse/internal/service/auth/tokenmanager"
)

type ServerApp struct {
	listenAddr      string
	handler         http.Handler
	logger          logger.Logger
	refreshRepo     repository.RefreshTokenRepo
	janitorInterval time.Duration
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger, JSON in production
	newLogger := logger.NewJSONLogger
	if c.Environment == EnvDev {
		newLogger = logger.NewTextLogger
	}
	l, err := newLogger(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	refreshRepo := storage.Refresh()
	switch c.TokenStore {
	case StorePostgres:
	case StoreRedis:
		client := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("error while connecting to redis. Err: %w", err)
		}
		refreshRepo = redisstore.NewRefreshTokenRepo(client)
	default:
		return nil, fmt.Errorf("unknown token store: %q", c.TokenStore)
	}

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		SecretKey:       c.SecretKey,
		AccessTTL:       c.AccessTokenTTL,
		RefreshTTL:      c.RefreshTokenTTL,
		MaxActiveTokens: c.MaxActiveTokens,
	}, refreshRepo)
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	authService, err := auth.NewService(auth.Config{}, tokenManager, storage.User())
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	mux := handlers.NewRouter(authService, storage.User(), l)

	return &ServerApp{
		listenAddr:      c.ListenAddr,
		handler:         mux,
		logger:          l,
		refreshRepo:     refreshRepo,
		janitorInterval: c.JanitorInterval,
	}, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.listenAddr,
		Handler: s.handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Sweep expired refresh records in background
	// Correctness doesn't depend on it, expired records are rejected anyway
	if s.janitorInterval > 0 {
		go s.runJanitor(srvCtx)
	}

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.listenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}

func (s *ServerApp) runJanitor(ctx context.Context) {
	ticker := time.NewTicker(s.janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.refreshRepo.DeleteExpired(ctx, time.Now())
			if err != nil {
				s.logger.Warn("expired token sweep failed", "error", err)
				continue
			}
			if deleted > 0 {
				s.logger.Info("swept expired refresh tokens", "deleted", deleted)
			}
		}
	}
}
