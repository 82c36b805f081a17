package main

import (
	"chat-hub/auth"
	"chat-hub/hub"
	"chat-hub/infrastructure/grpc/server"
	"chat-hub/infrastructure/rest"
	"chat-hub/infrastructure/ws"
	"chat-hub/internal"
	"chat-hub/moderation"
	"chat-hub/repositories"
	"chat-hub/runtime/workers"
	"chat-hub/services"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the service manager.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Chat hub terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and blocks until a shutdown signal or a server
// failure. Deferred cleanups always run before the exit code is returned.
func run() (int, error) {
	// 1. Configuration & Logger
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return exitConfig, fmt.Errorf(".env error: %w", err)
	}
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx := context.Background()

	// 2. Database (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()
	if logger.Enabled(ctx, slog.LevelDebug) {
		endpoint := "/inspect"
		logger.Info("Debug Badger inspector available", "url", fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint))
		database.StartDebugServer(db, config.DebugPort, endpoint, recordMapper)
	}

	// 3. Moderation
	censored, err := moderation.NewEmbeddedLoader().LoadAll(config.CensoredDir)
	if err != nil {
		return exitConfig, fmt.Errorf("censored words: %w", err)
	}
	moderator, err := moderation.NewModerator(censored.Words, charReplacement, logger)
	if err != nil {
		return exitConfig, err
	}
	logger.Info("Moderation ready", "words", len(censored.Words), "languages", censored.Languages)

	// 4. Hub (index, services, workers)
	chatHub, err := hub.New(hub.Options{
		DB:          db,
		IndexConfig: bluge.DefaultConfig(config.BlugeFilepath),
		Tokens:      auth.NewTokenManager(config.JWTSecret, config.AuthTokenDuration),
		Moderator:   moderator,
		Messages: services.MessageSettings{
			MaxContentLength: config.MaxContentLength,
			DefaultPageSize:  config.DefaultPageSize,
			MaxPageSize:      config.MaxPageSize,
		},
		IndexBufferSize:   config.IndexBufferSize,
		TelemetryInterval: config.TelemetryInterval,
	}, logger)
	if err != nil {
		return exitRuntime, err
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = chatHub.Close()
	}()

	supervisor := workers.NewSupervisor(logger).WithRestartDelay(config.RestartInterval)
	supervisor.Add(chatHub.Workers()...)
	supervisorDone := make(chan struct{})
	go func() {
		supervisor.Run(ctx)
		close(supervisorDone)
	}()

	// 5. HTTP (REST + websocket)
	wsHandler := ws.NewHandler(chatHub.Chat, ws.Settings{
		AllowedOrigins: config.Origins(),
		BufferSize:     config.ConnectionBufferSize,
		WriteTimeout:   config.WriteTimeout,
		PingInterval:   config.PingInterval,
		MaxFrameSize:   config.MaxFrameSize,
	}, logger)
	router := rest.NewRouter(chatHub.Chat, chatHub.Rooms, chatHub.Messages, logger)
	// Websocket sessions live on this context: Shutdown does not see hijacked
	// connections, so they are ended by canceling it.
	sessionCtx, endSessions := context.WithCancel(context.Background())
	httpServer := &http.Server{
		Addr:              config.Address(),
		Handler:           router.Handler(chatHub.Identity, wsHandler, config.Origins()),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return sessionCtx },
	}
	stopSessions := func(ctx context.Context) error {
		endSessions()
		return wsHandler.Wait(ctx)
	}
	defer func() {
		waitCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()
		if err := stopSessions(waitCtx); err != nil {
			logger.Warn("WebSocket sessions still running", "error", err)
		}
	}()

	errChan := make(chan error, 2)
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 6. gRPC health
	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", config.Host, config.HealthPort))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on health port %d: %w", config.HealthPort, err)
	}
	healthServer := server.NewHealthServer(logger)
	go func() {
		if err := healthServer.Serve(listener); err != nil {
			errChan <- fmt.Errorf("gRPC health server error: %w", err)
		}
	}()

	// 7. Wait for a signal or a failure
	wait := gfshutdown.GracefulShutdown(ctx, config.ShutdownTimeout, map[string]gfshutdown.Operation{
		"chat-hub": func(ctx context.Context) error {
			logger.Info("Shutting down gracefully...")
			healthServer.Shutdown()
			if err := httpServer.Shutdown(ctx); err != nil {
				return err
			}
			if err := stopSessions(ctx); err != nil {
				return err
			}
			logger.Info("WebSocket sessions closed")
			supervisor.Stop()
			select {
			case <-supervisorDone:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})

	select {
	case err = <-errChan:
		return exitRuntime, err
	case code := <-wait:
		logger.Info("Program stopped", "code", code)
		if code != 0 {
			return exitRuntime, fmt.Errorf("shutdown finished with code %d", code)
		}
		return exitOK, nil
	}
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)
	if logger.Enabled(ctx, slog.LevelDebug) {
		return options.WithLoggingLevel(badger.DEBUG)
	}
	return options.WithLoggingLevel(badger.WARNING)
}

func recordMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)
	record := repositories.Describe(key, val)
	row.Type = record.Type
	row.Detail = record.Detail
	return row
}
