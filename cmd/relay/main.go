package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"campus-relay/auth"
	"campus-relay/domain"
	"campus-relay/infrastructure/httpapi"
	"campus-relay/infrastructure/storage"
	"campus-relay/infrastructure/ws"
	"campus-relay/internal"
	"campus-relay/moderation"
	"campus-relay/observability"
	"campus-relay/runtime"
	"campus-relay/runtime/workers"
	"campus-relay/services"
)

// Exit codes to provide meaningful status to the operating system or
// service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper. Its only responsibility
	// is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting. Returning instead of exiting ensures
// deferred cleanup (database close, graceful shutdown) actually runs.
func run() (int, error) {
	// 1. Configuration & logger
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx := context.Background()

	// 2. Directory store (BadgerDB)
	options := buildBadgerOpts(config, logger, ctx)
	db, err := badger.Open(options)
	if err != nil {
		return exitRuntime, fmt.Errorf("directory store opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()
	directory := storage.NewDirectory(db, logger)

	// 3. Moderation (optional: no word list, no masking)
	moderator, err := buildModerator(config)
	if err != nil {
		return exitConfig, err
	}

	// 4. Relay core
	stats := observability.NewRelayStats()
	presenceChan := make(chan domain.PresenceTransition, config.PresenceBufferSize)
	registry := runtime.NewRegistry(logger, stats, presenceChan)
	router := runtime.NewRouter(logger, registry, directory, stats, moderator, config.LookupTimeout)
	broker := runtime.NewCallBroker(logger, router, stats, config.RingTimeout)
	registry.OnOffline(broker.EndFor)

	relayService := services.NewRelayService(router, broker)

	// 5. Supervision
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(
		workers.NewPresenceWorker(logger, directory, presenceChan),
		workers.NewMonitorWorker(logger, stats, config.MetricInterval),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	supDone := make(chan struct{})
	go func() {
		logger.Info("Starting supervised workers")
		sup.Run(ctx)
		close(supDone)
	}()

	// 6. HTTP server: WebSocket endpoint + internal notify API
	tokens := auth.NewTokenManager([]byte(config.AuthSecret), "campus-relay", config.AuthTokenDuration)
	mux := http.NewServeMux()
	wsHandler := ws.NewHandler(logger, tokens, registry, relayService, stats, ws.Options{
		SendBuffer:    config.ConnectionBufferSize,
		WriteTimeout:  config.WriteTimeout,
		PingInterval:  config.PingInterval,
		PongTimeout:   config.PongTimeout,
		MaxFrameBytes: config.MaxFrameBytes,
	})
	wsHandler.Register(mux)
	httpapi.RegisterNotify(mux, logger, relayService, config.InternalKeyHash)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: mux}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting relay server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("relay server error: %w", err)
		}
	}()

	// 7. Wait for stop or error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 8. Graceful shutdown: stop accepting, let pumps drain, stop workers.
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	sup.Stop()
	<-supDone
	logger.Info("Relay stopped cleanly")

	return exitOK, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)
	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}
	return options
}

func buildModerator(config internal.Config) (*moderation.Moderator, error) {
	if config.CensoredFilepath == "" {
		return nil, nil
	}
	replacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(config.CensoredFilepath)
	if err != nil {
		return nil, fmt.Errorf("opening censored word list: %w", err)
	}
	defer file.Close()

	words, err := moderation.LoadWordList(file)
	if err != nil {
		return nil, fmt.Errorf("reading censored word list: %w", err)
	}
	return moderation.NewModerator(words, replacement)
}
