package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/layer-3/payroll-auth/adapters/clock"
	"github.com/layer-3/payroll-auth/adapters/ethsig"
	"github.com/layer-3/payroll-auth/adapters/tokenizer"
	"github.com/layer-3/payroll-auth/internal/config"
	"github.com/layer-3/payroll-auth/internal/logger"
	"github.com/layer-3/payroll-auth/internal/metrics"
	"github.com/layer-3/payroll-auth/service"
	transport "github.com/layer-3/payroll-auth/transport/http"
)

const (
	sweepInterval   = time.Minute
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	sysClock := clock.System()

	b, err := newBackends(ctx, cfg, sysClock, logr)
	if err != nil {
		return err
	}
	defer b.Close()

	m := metrics.New()
	authService := service.NewAuthService(service.Config{
		Domain:              cfg.Auth.Domain,
		Product:             cfg.Auth.Product,
		ChallengeTTL:        cfg.Auth.ChallengeTTL,
		AccessTTL:           cfg.JWT.AccessTTL,
		RefreshTTL:          cfg.JWT.RefreshTTL,
		RevokeFamilyOnReuse: cfg.JWT.RevokeFamilyOnReuse,
	}, service.Dependencies{
		Nonces:     b.nonces,
		Limiter:    b.limiter,
		Sessions:   b.sessions,
		Users:      b.users,
		Tokenizer:  tokenizer.NewJWTTokenizer([]byte(cfg.JWT.Secret), cfg.JWT.Issuer, cfg.JWT.Audience),
		Signatures: ethsig.NewPersonalSignVerifier(),
		Events:     b.events,
		Clock:      sysClock,
		Metrics:    m,
		Logger:     logr,
	})

	go authService.RunSweeper(ctx, sweepInterval)

	router, err := transport.SetupRouter(authService, m, logr, cfg.TrustedProxies)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting",
			"addr", srv.Addr,
			"env", cfg.Env,
			"ephemeral_backend", cfg.Storage.EphemeralBackend,
			"session_backend", cfg.Storage.SessionBackend,
			"events_backend", cfg.Events.Backend,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
