package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode"

	natspkg "github.com/brojonat/memotransfer/service/nats"
	"github.com/brojonat/memotransfer/service/solana"
	"github.com/brojonat/memotransfer/service/temporal"
	solanago "github.com/gagliardetto/solana-go"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB
	maxAddressLength   = 100     // Solana addresses are 44 chars, give buffer
	maxSignatureLength = 100     // base58 signatures are 87-88 chars
	maxNoteLength      = 280
)

var (
	// Valid Solana address characters: base58 (no 0, O, I, l)
	validBase58Regex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)
)

// handleGetRecipient returns a handler that describes the recipient account.
// GET /api/v1/recipient
func handleGetRecipient(describer AccountDescriber, recipient solanago.PublicKey, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		summary, err := describer.DescribeAccount(r.Context(), recipient)
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to describe recipient", "address", recipient.String(), "error", err)
			writeError(w, "failed to describe recipient", statusForError(err))
			return
		}

		logger.DebugContext(r.Context(), "recipient described",
			"address", summary.Address,
			"found", summary.Found,
		)
		writeJSON(w, summary, http.StatusOK)
	})
}

// handleAuthenticate returns a handler that checks a signature on chain.
// GET /api/v1/authenticate/{signature}
// Unknown or non-qualifying signatures return 200 with authenticated=false.
func handleAuthenticate(auth Authenticator, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signature := r.PathValue("signature")

		if err := validateSignature(signature); err != nil {
			logger.DebugContext(r.Context(), "invalid signature", "signature", signature, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		result, err := auth.Authenticate(r.Context(), signature)
		if err != nil {
			if errors.Is(err, solana.ErrInvalidSignature) {
				writeError(w, "invalid signature", http.StatusBadRequest)
				return
			}
			logger.ErrorContext(r.Context(), "failed to authenticate signature", "signature", signature, "error", err)
			writeError(w, "failed to authenticate signature", statusForError(err))
			return
		}

		logger.InfoContext(r.Context(), "signature checked",
			"signature", signature,
			"authenticated", result.Authenticated,
		)
		writeJSON(w, result, http.StatusOK)
	})
}

// handleLogTransaction returns a handler that accepts a client-side
// transaction log entry and forwards it to NATS when a publisher is set.
// POST /api/v1/transactions/log
func handleLogTransaction(publisher natspkg.Publisher, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		body, err := io.ReadAll(r.Body)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeError(w, "request body too large: maximum size is 1MB", http.StatusBadRequest)
				return
			}
			writeError(w, "failed to read request body", http.StatusBadRequest)
			return
		}

		var entry struct {
			Sender       string `json:"sender"`
			SenderWallet string `json:"sender_wallet"`
			Signature    string `json:"signature"`
		}
		if err := json.Unmarshal(body, &entry); err != nil {
			logger.DebugContext(r.Context(), "failed to decode log entry", "error", err)
			writeError(w, "invalid request body: must be a JSON object", http.StatusBadRequest)
			return
		}

		sender := entry.Sender
		if sender == "" {
			sender = entry.SenderWallet
		}
		if sender != "" {
			if err := validateAddress(sender); err != nil {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
		}

		logger.InfoContext(r.Context(), "received transaction log",
			"sender", sender,
			"signature", entry.Signature,
			"size", len(body),
		)

		if publisher != nil {
			event := &natspkg.LogEvent{
				Sender:     sender,
				Signature:  entry.Signature,
				Payload:    json.RawMessage(body),
				ReceivedAt: time.Now().UTC(),
			}
			if err := publisher.PublishLog(r.Context(), event); err != nil {
				// The entry was received; losing the event does not fail the request.
				logger.WarnContext(r.Context(), "failed to publish transaction log", "error", err)
			}
		}

		writeJSON(w, map[string]string{"status": "received"}, http.StatusOK)
	})
}

// transferRequest is the body of POST /api/v1/transfers.
type transferRequest struct {
	Sender string `json:"sender,omitempty"`
	Note   string `json:"note,omitempty"`
}

// handleSubmitTransfer returns a handler that submits a transfer with the
// server's wallet. With a scheduler the submission runs as a workflow on a
// worker that holds the keypair and the handler answers 202 with its id;
// otherwise it runs inline and requires a connected server wallet.
// POST /api/v1/transfers
func handleSubmitTransfer(submitter Submitter, wallet solana.WalletSession, ledger solana.LedgerClient, scheduler temporal.SubmissionScheduler, publisher natspkg.Publisher, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req transferRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
				logger.DebugContext(r.Context(), "failed to decode transfer request", "error", err)
				var maxErr *http.MaxBytesError
				if errors.As(err, &maxErr) {
					writeError(w, "request body too large: maximum size is 1MB", http.StatusBadRequest)
					return
				}
				writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
				return
			}
		}

		var sender solanago.PublicKey
		if req.Sender != "" {
			if err := validateAddress(req.Sender); err != nil {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
			pk, err := solanago.PublicKeyFromBase58(req.Sender)
			if err != nil {
				writeError(w, "invalid sender: not a valid public key", http.StatusBadRequest)
				return
			}
			sender = pk
		}

		if err := validateNote(req.Note); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		if scheduler != nil {
			workflowID, err := scheduler.StartSubmitTransfer(r.Context(), temporal.SubmitTransferInput{
				Sender: req.Sender,
				Note:   req.Note,
			})
			if err != nil {
				logger.ErrorContext(r.Context(), "failed to start submit workflow", "error", err)
				writeError(w, "failed to start submission", http.StatusInternalServerError)
				return
			}

			logger.InfoContext(r.Context(), "submission workflow started", "workflow_id", workflowID)
			writeJSON(w, map[string]string{
				"workflow_id": workflowID,
				"status":      "submitted",
			}, http.StatusAccepted)
			return
		}

		if wallet == nil || !wallet.IsConnected() {
			writeError(w, "server wallet not configured", http.StatusServiceUnavailable)
			return
		}

		intent := solana.NewTransferIntent(sender, req.Note)
		sub, err := submitter.Run(r.Context(), intent, wallet, ledger)
		event := natspkg.NewSubmissionEvent(intent, sub, err)

		if publisher != nil {
			if pubErr := publisher.PublishSubmission(r.Context(), event); pubErr != nil {
				logger.WarnContext(r.Context(), "failed to publish submission event", "error", pubErr)
			}
		}

		status := http.StatusOK
		if err != nil {
			status = statusForError(err)
			logger.WarnContext(r.Context(), "submission failed",
				"outcome", event.Outcome,
				"signature", event.Signature,
				"error", err,
			)
		} else {
			logger.InfoContext(r.Context(), "submission confirmed", "signature", event.Signature)
		}

		writeJSON(w, event, status)
	})
}

// handleGetTransfer returns a handler that reports on a submission workflow.
// GET /api/v1/transfers/{workflow_id}
func handleGetTransfer(scheduler temporal.SubmissionScheduler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if scheduler == nil {
			writeError(w, "durable submissions not configured", http.StatusServiceUnavailable)
			return
		}

		workflowID := r.PathValue("workflow_id")
		if workflowID == "" || len(workflowID) > 200 {
			writeError(w, "invalid workflow_id", http.StatusBadRequest)
			return
		}

		status, err := scheduler.GetSubmitTransfer(r.Context(), workflowID)
		if err != nil {
			if errors.Is(err, temporal.ErrSubmissionNotFound) {
				writeError(w, "submission not found", http.StatusNotFound)
				return
			}
			logger.ErrorContext(r.Context(), "failed to get submission", "workflow_id", workflowID, "error", err)
			writeError(w, "failed to get submission", http.StatusInternalServerError)
			return
		}

		writeJSON(w, status, http.StatusOK)
	})
}

// statusForError maps submission and ledger errors to HTTP status codes.
func statusForError(err error) int {
	var confirmErr *solana.ConfirmationFailedError
	switch {
	case errors.As(err, &confirmErr):
		// The transfer was sent; the body carries the outcome.
		return http.StatusOK
	case errors.Is(err, solana.ErrWalletNotConnected), errors.Is(err, solana.ErrNetworkUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, solana.ErrSigningFailed):
		return http.StatusBadGateway
	case errors.Is(err, solana.ErrInvalidTransaction):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// validateAddress validates a wallet address for security and format.
func validateAddress(address string) error {
	if address == "" {
		return errorf("address is required")
	}

	if len(address) > maxAddressLength {
		return errorf("address too long: maximum length is %d characters", maxAddressLength)
	}

	if err := rejectControlChars("address", address); err != nil {
		return err
	}

	if !validBase58Regex.MatchString(address) {
		return errorf("invalid address format: must contain only valid base58 characters")
	}

	return nil
}

// validateSignature validates a transaction signature path parameter.
func validateSignature(signature string) error {
	if signature == "" {
		return errorf("signature is required")
	}

	if len(signature) > maxSignatureLength {
		return errorf("signature too long: maximum length is %d characters", maxSignatureLength)
	}

	if err := rejectControlChars("signature", signature); err != nil {
		return err
	}

	if !validBase58Regex.MatchString(signature) {
		return errorf("invalid signature format: must contain only valid base58 characters")
	}

	return nil
}

// validateNote validates the free-form memo note.
func validateNote(note string) error {
	if len(note) > maxNoteLength {
		return errorf("note too long: maximum length is %d bytes", maxNoteLength)
	}
	// encoding/json always escapes U+2028 and U+2029, so the on-chain memo
	// would not carry the note verbatim.
	if strings.ContainsAny(note, "\u2028\u2029") {
		return errorf("invalid characters in note: line separators not allowed")
	}
	return rejectControlChars("note", note)
}

func rejectControlChars(field, value string) error {
	for _, r := range value {
		if r == 0 || unicode.IsControl(r) {
			return errorf("invalid characters in %s: control characters not allowed", field)
		}
	}
	return nil
}

// errorf is a helper to format error strings.
func errorf(format string, args ...interface{}) error {
	return &validationError{msg: strings.TrimSpace(fmt.Sprintf(format, args...))}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}
