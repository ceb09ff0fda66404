package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/memotransfer/service/metrics"
	natspkg "github.com/brojonat/memotransfer/service/nats"
	"github.com/brojonat/memotransfer/service/solana"
	"github.com/brojonat/memotransfer/service/temporal"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AccountDescriber reports the state of an account. *solana.Client satisfies it.
type AccountDescriber interface {
	DescribeAccount(ctx context.Context, address solanago.PublicKey) (*solana.AccountSummary, error)
}

// Authenticator checks a signature against the chain. *solana.Verifier satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, signature string) (*solana.Authentication, error)
}

// Submitter runs one submission attempt. *solana.Submitter satisfies it.
type Submitter interface {
	Run(ctx context.Context, intent solana.TransferIntent, wallet solana.WalletSession, ledger solana.LedgerClient) (*solana.Submission, error)
}

// Services are the components the HTTP API is built on.
type Services struct {
	Describer     AccountDescriber
	Authenticator Authenticator
	Recipient     solanago.PublicKey

	// Submitter, Wallet and Ledger serve POST /api/v1/transfers. A nil or
	// disconnected Wallet makes that endpoint answer 503.
	Submitter Submitter
	Wallet    solana.WalletSession
	Ledger    solana.LedgerClient

	Scheduler temporal.SubmissionScheduler // optional: submissions run inline when nil
	Publisher natspkg.Publisher            // optional: events are not published when nil
}

// Server represents the HTTP server for the transfer service.
type Server struct {
	addr     string
	services Services
	metrics  *metrics.Metrics
	logger   *slog.Logger
	server   *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The metrics is optional - if nil, metrics endpoints won't be available.
func New(addr string, services Services, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if services.Recipient.IsZero() {
		services.Recipient = solana.RecipientAddress
	}
	return &Server{
		addr:     addr,
		services: services,
		metrics:  m,
		logger:   logger,
	}
}

// Handler builds the routed handler with CORS and metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	svc := s.services

	mux.Handle("GET /api/v1/recipient", handleGetRecipient(svc.Describer, svc.Recipient, s.logger))
	mux.Handle("GET /api/v1/authenticate/{signature}", handleAuthenticate(svc.Authenticator, s.logger))
	mux.Handle("POST /api/v1/transactions/log", handleLogTransaction(svc.Publisher, s.logger))
	mux.Handle("POST /api/v1/transfers", handleSubmitTransfer(svc.Submitter, svc.Wallet, svc.Ledger, svc.Scheduler, svc.Publisher, s.logger))
	mux.Handle("GET /api/v1/transfers/{workflow_id}", handleGetTransfer(svc.Scheduler, s.logger))

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return corsMiddleware(metrics.InstrumentHandler(s.metrics, mux))
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	if s.services.Wallet == nil || !s.services.Wallet.IsConnected() {
		s.logger.Warn("no server wallet configured, transfer submission disabled")
	}
	if s.services.Scheduler == nil {
		s.logger.Info("temporal not configured, submissions run inline")
	}
	if s.services.Publisher == nil {
		s.logger.Info("nats not configured, events are not published")
	}

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute, // inline submissions wait for confirmation
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
