package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/memotransfer/service/config"
	"github.com/brojonat/memotransfer/service/metrics"
	natspkg "github.com/brojonat/memotransfer/service/nats"
	"github.com/brojonat/memotransfer/service/server"
	"github.com/brojonat/memotransfer/service/solana"
	"github.com/brojonat/memotransfer/service/temporal"
	"github.com/gagliardetto/solana-go/rpc"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
		"network", cfg.SolanaNetwork,
	)

	// Initialize Prometheus metrics collector
	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry

	// Initialize Solana RPC client against one of the configured endpoints
	endpoint, err := solana.SelectRandomEndpoint(cfg.SolanaRPCURLs)
	if err != nil {
		logger.Error("failed to select RPC endpoint", "error", err)
		os.Exit(1)
	}
	solanaClient := solana.NewClient(
		solana.NewRPCClient(endpoint),
		solana.EndpointLabel(endpoint),
		metricsCollector,
		logger,
		solana.WithCommitment(rpc.CommitmentType(cfg.SolanaCommitment)),
		solana.WithConfirmPollInterval(cfg.ConfirmPollInterval),
	)
	logger.Info("initialized solana RPC client",
		"endpoint", solana.EndpointLabel(endpoint),
		"total_endpoints", len(cfg.SolanaRPCURLs),
	)

	services := server.Services{
		Describer:     solanaClient,
		Authenticator: solana.NewVerifier(solanaClient, solana.RecipientAddress, logger),
		Recipient:     solana.RecipientAddress,
		Submitter:     solana.NewSubmitter(metricsCollector, logger),
		Ledger:        solanaClient,
	}

	// Server wallet (optional)
	if cfg.WalletKeypairPath != "" {
		wallet, err := solana.LoadKeypairWallet(cfg.WalletKeypairPath, solanaClient, logger)
		if err != nil {
			logger.Error("failed to load wallet keypair", "path", cfg.WalletKeypairPath, "error", err)
			os.Exit(1)
		}
		services.Wallet = wallet
	}

	// NATS publisher (optional)
	if cfg.NATSEnabled() {
		publisher, err := natspkg.NewPublisher(cfg.NATSURL, metricsCollector, logger)
		if err != nil {
			logger.Error("failed to create NATS publisher", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		services.Publisher = publisher
		logger.Info("connected to NATS", "url", cfg.NATSURL)
	}

	// Temporal client for durable submissions (optional)
	if cfg.TemporalEnabled() {
		temporalClient, err := temporal.NewClient(
			cfg.TemporalHost,
			cfg.TemporalNamespace,
			cfg.TemporalTaskQueue,
			logger,
		)
		if err != nil {
			logger.Error("failed to create temporal client", "error", err)
			os.Exit(1)
		}
		defer temporalClient.Close()
		services.Scheduler = temporalClient
	}

	// Initialize HTTP server
	httpServer := server.New(cfg.ServerAddr, services, metricsCollector, logger)

	logger.Info("server initialized, all dependencies ready",
		"wallet_configured", services.Wallet != nil,
		"nats_enabled", cfg.NATSEnabled(),
		"temporal_enabled", cfg.TemporalEnabled(),
	)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
