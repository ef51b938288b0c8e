package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/mbank/internal/buildinfo"
	"github.com/dmitrijs2005/mbank/internal/devauth"
	"github.com/dmitrijs2005/mbank/internal/logging"
	"golang.org/x/crypto/bcrypt"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	cfg, err := devauth.Load()
	if err != nil {
		log.Fatalf("%v", err)
	}
	logger := logging.NewTextLogger(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.GeneratedSecret {
		logger.Warn(ctx, "JWT_SECRET not set, using a random secret; tokens will not survive a restart")
	}

	users, err := devauth.NewUsers(cfg.Users, bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("%v", err)
	}
	issuer := devauth.NewIssuer(cfg.JWTSecret, cfg.AccessTokenExpiry, cfg.RefreshTokenExpiry)
	srv := devauth.NewServer(cfg, users, issuer, logger)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           devauth.NewRouter(srv),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info(ctx, "devauth listening", "addr", cfg.Addr, "refresh_shape", cfg.RefreshShape)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "shutdown", "error", err)
	}
	logger.Info(shutdownCtx, "devauth stopped")
}
