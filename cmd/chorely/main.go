package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/chorely/internal/auth"
	"github.com/dukerupert/chorely/internal/config"
	"github.com/dukerupert/chorely/internal/database"
	"github.com/dukerupert/chorely/internal/email"
	"github.com/dukerupert/chorely/internal/feed"
	"github.com/dukerupert/chorely/internal/logging"
	"github.com/dukerupert/chorely/internal/push"
	"github.com/dukerupert/chorely/internal/server"
)

func main() {
	genVAPID := flag.Bool("generate-vapid-keys", false, "print a new VAPID key pair and exit")
	flag.Parse()

	if *genVAPID {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			fmt.Fprintf(os.Stderr, "generate vapid keys: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("CHORELY_VAPID_PUBLIC_KEY=%s\nCHORELY_VAPID_PRIVATE_KEY=%s\n", pub, priv)
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	verifier, err := auth.NewTokenVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		return err
	}

	opts := server.Options{
		Verifier: verifier,
		Expo: push.ExpoConfig{
			URL:         cfg.Expo.URL,
			AccessToken: cfg.Expo.AccessToken,
			Timeout:     cfg.Expo.Timeout,
			MaxRetries:  cfg.Expo.MaxRetries,
			Backoff:     cfg.Expo.Backoff,
		},
		Feed:           feed.Config{Workers: cfg.Feed.Workers, Buffer: cfg.Feed.Buffer},
		AllowedOrigins: cfg.AllowedOrigins,
		JoinRateLimit:  cfg.JoinRateLimit,
	}
	if cfg.WebPush.Enabled() {
		opts.WebPush = push.NewWebPush(cfg.WebPush.PublicKey, cfg.WebPush.PrivateKey, cfg.WebPush.Subscriber)
	} else {
		logger.Info("web push disabled: VAPID keys not set")
	}
	if cfg.Postmark.ServerToken != "" {
		opts.Mailer = email.NewClient(cfg.Postmark.ServerToken, cfg.Postmark.FromEmail, cfg.BaseURL)
	} else {
		logger.Info("email invites disabled: postmark token not set")
	}

	srv := server.New(db, opts, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.Start(ctx)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	httpServer.RegisterOnShutdown(srv.Hub().CloseAll)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("chorely listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer stop()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	if err := srv.Drain(shutdownCtx); err != nil {
		logger.Error("feed drain", "error", err)
	}
	logger.Info("stopped")
	return nil
}
