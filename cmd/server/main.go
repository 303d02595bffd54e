// Command accountd starts the account lifecycle HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/avmikhailov/accountd/internal/challenge"
	"github.com/avmikhailov/accountd/internal/config"
	"github.com/avmikhailov/accountd/internal/mail"
	"github.com/avmikhailov/accountd/internal/migrate"
	"github.com/avmikhailov/accountd/internal/repository/postgres"
	"github.com/avmikhailov/accountd/internal/server/httpapi"
	"github.com/avmikhailov/accountd/internal/service"
	"github.com/avmikhailov/accountd/internal/token"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main resolves configuration, runs migrations, and starts the HTTP server.
func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	addr := flag.String("addr", "", "listen address (overrides config)")
	dsn := flag.String("dsn", "", "PostgreSQL DSN (overrides config)")
	signKey := flag.String("sign-key", "", "HS256 signing key (overrides config)")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *dsn != "" {
		cfg.DSN = *dsn
	}
	if *signKey != "" {
		cfg.SignKey = *signKey
	}
	if cfg.DSN == "" {
		logger.Fatal("missing database DSN (--dsn)")
	}
	if cfg.SignKey == "" {
		logger.Fatal("missing token signing key (--sign-key)")
	}

	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DSN); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	// DB pool
	db, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	defer db.Close()

	// Repositories
	accountRepo := postgres.NewAccountRepo(db)
	companyRepo := postgres.NewCompanyRepo(db)

	// Services
	eng := challenge.New(cfg.CodeDigits, cfg.MaxAttempts)
	tokenSvc := token.NewService([]byte(cfg.SignKey), cfg.AccessTTL, cfg.RefreshTTL, cfg.Issuer)
	sender := mail.NewLogSender(logger)
	accountSvc := service.NewAccountService(accountRepo, companyRepo, eng, tokenSvc, sender, cfg.ChallengeTTL)

	// HTTP server
	app := httpapi.New(accountSvc, tokenSvc, logger)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}
