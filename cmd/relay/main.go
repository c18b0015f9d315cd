package main

import (
	"chat-relay/attachment"
	"chat-relay/auth"
	"chat-relay/errors"
	"chat-relay/infrastructure/grpc/relay"
	"chat-relay/infrastructure/grpc/server"
	"chat-relay/internal"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run builds the process-wide state once, serves until a signal arrives,
// then tears everything down in reverse order. Returning instead of exiting
// keeps the deferred database close on every path.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics := observability.NewMetrics(registry)

	// 4. Message log, fan-out and attachments
	messageRepository := repositories.NewMessageRepository(db, log)
	store, err := runtime.NewMessageStore(log, messageRepository, metrics, config.ReplayPageSize)
	if err != nil {
		return fmt.Errorf("message store failed to start: %w", err)
	}
	hub := runtime.NewHub(log, store, runtime.NewRegistry(), metrics, config.SubscriptionBufferSize)
	resolver := attachment.NewResolver(log, repositories.NewBlobRepository(db, log), metrics,
		config.AttachmentPrefix, config.MaxAttachmentSize)

	// 5. Sessions & transport
	issuer, err := auth.NewTokenIssuer(config.AuthSecret, config.AuthTokenDuration)
	if err != nil {
		return fmt.Errorf("auth setup failed: %w", err)
	}
	relayServer := server.NewRelayServer(log, store, hub, resolver, issuer, metrics,
		services.ClientConfig{MaxTextLength: config.MaxTextLength})
	s := grpc.NewServer(server.ServerOptions(issuer, config.MaxAttachmentSize)...)
	relay.RegisterRelayServiceServer(s, relayServer)

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 7. Background workers & debug endpoint
	stats := func() workers.RelayStats {
		return workers.RelayStats{
			Tail:          store.Tail(),
			Subscriptions: hub.Active(),
			Sessions:      relayServer.Sessions(),
		}
	}
	sup := workers.NewSupervisor(log)
	sup.Add(workers.NewHeartbeatWorker(log, config.HeartbeatInterval, metrics, stats))
	go sup.Run(ctx)

	debug := internal.NewDebugServer(log, fmt.Sprintf("%s:%d", config.Host, config.DebugPort),
		registry, messageRepository, store.Tail, func() map[string]any {
			current := stats()
			return map[string]any{
				"tail":          current.Tail,
				"subscriptions": current.Subscriptions,
				"sessions":      current.Sessions,
			}
		})
	debug.Start()

	// 8. gRPC Server
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting gRPC server", "address", address, "tail", store.Tail(), "at", time.Now().UTC())
		if err := s.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	// 9. Wait for Stop or Error
	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case serveErr = <-errChan:
		log.Error("Shutting down after server failure", "error", serveErr)
	}

	// 10. Final Cleanup: streams first, then the listener, then workers
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	relayServer.Close()
	if err := hub.Close(shutdownCtx); err != nil {
		log.Warn("Hub closed with pending consumers", "error", err)
	}
	s.GracefulStop()
	sup.Stop()
	sup.Wait()
	if err := debug.Shutdown(shutdownCtx); err != nil {
		log.Warn("Debug server shutdown failed", "error", err)
	}
	log.Info("Program stopped cleanly")
	return serveErr
}
