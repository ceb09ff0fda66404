package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/memotransfer/service/metrics"
	"github.com/gagliardetto/solana-go"
)

// WalletSession is the user's connected wallet. SignAndSend blocks until the
// user approves or rejects the transaction.
type WalletSession interface {
	IsConnected() bool
	// AccountAddress returns the active account; ok is false when none is selected.
	AccountAddress() (addr solana.PublicKey, ok bool)
	SignAndSend(ctx context.Context, tx *PendingTransaction) (TransactionID, error)
}

// LedgerClient is the network side of a submission.
type LedgerClient interface {
	GetLatestReference(ctx context.Context) (Reference, error)
	Confirm(ctx context.Context, id TransactionID, ref Reference) (*ConfirmationResult, error)
}

// Submitter runs one intent-to-confirmation pipeline per Submit call. It keeps
// no state between calls, so concurrent use is limited only by the wallet and
// ledger passed in.
type Submitter struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewSubmitter creates a Submitter. If metrics is nil, no metrics will be recorded.
func NewSubmitter(m *metrics.Metrics, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// WithClock replaces the clock used for memo timestamps.
func (s *Submitter) WithClock(now func() time.Time) *Submitter {
	s.now = now
	return s
}

// Submission records one attempt: the intent that was sent, the id the wallet
// returned and the confirmation outcome.
type Submission struct {
	Intent TransferIntent
	ID     TransactionID
	Result *ConfirmationResult
}

// Submit builds the transfer-plus-memo transaction for intent, has wallet sign
// and send it, then performs a single confirmation wait on ledger.
//
// An intent without a sender is sent from the wallet's active account; an
// intent naming a different account is rejected. When the ledger does not
// confirm, the result is returned together with a *ConfirmationFailedError.
// Nothing is retried.
func (s *Submitter) Submit(ctx context.Context, intent TransferIntent, wallet WalletSession, ledger LedgerClient) (*ConfirmationResult, error) {
	sub, err := s.Run(ctx, intent, wallet, ledger)
	if sub == nil {
		return nil, err
	}
	return sub.Result, err
}

// Run is Submit for callers that also need the transaction id. The returned
// Submission is non-nil once the wallet has sent the transaction, even when
// confirmation fails.
func (s *Submitter) Run(ctx context.Context, intent TransferIntent, wallet WalletSession, ledger LedgerClient) (sub *Submission, err error) {
	start := s.now()
	defer func() {
		if s.metrics != nil {
			var result *ConfirmationResult
			if sub != nil {
				result = sub.Result
			}
			s.metrics.RecordSubmission(SubmissionOutcome(result, err), s.now().Sub(start).Seconds())
		}
	}()

	if wallet == nil || !wallet.IsConnected() {
		return nil, ErrWalletNotConnected
	}
	sender, ok := wallet.AccountAddress()
	if !ok || sender.IsZero() {
		return nil, ErrWalletNotConnected
	}
	if intent.Sender.IsZero() {
		intent.Sender = sender
	} else if !intent.Sender.Equals(sender) {
		return nil, fmt.Errorf("%w: intent sender %s is not the connected account %s",
			ErrInvalidTransaction, intent.Sender, sender)
	}

	logger := s.logger.With("sender", sender.String())

	pending, err := BuildPendingTransaction(intent, s.now())
	if err != nil {
		logger.ErrorContext(ctx, "failed to build transaction", "error", err)
		return nil, err
	}

	logger.InfoContext(ctx, "requesting wallet signature",
		"recipient", intent.Recipient.String(),
		"amount", intent.Amount,
	)
	id, err := wallet.SignAndSend(ctx, pending)
	if err != nil {
		logger.WarnContext(ctx, "wallet did not sign transaction", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}
	sub = &Submission{Intent: intent, ID: id}
	logger = logger.With("signature", id.String())
	logger.InfoContext(ctx, "transaction sent")

	ref, err := ledger.GetLatestReference(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to get confirmation reference", "error", err)
		return sub, err
	}

	result, err := ledger.Confirm(ctx, id, ref)
	if err != nil {
		logger.ErrorContext(ctx, "failed to confirm transaction", "error", err)
		return sub, err
	}
	sub.Result = result

	if !result.Confirmed {
		detail := ""
		if result.ErrorDetail != nil {
			detail = *result.ErrorDetail
		}
		logger.WarnContext(ctx, "transaction not confirmed", "detail", detail)
		return sub, &ConfirmationFailedError{Detail: detail}
	}

	logger.InfoContext(ctx, "transaction confirmed")
	return sub, nil
}

// SubmissionOutcome classifies a finished attempt for metrics and events:
// "confirmed", "not_confirmed", "wallet_not_connected", "signing_failed" or
// "error".
func SubmissionOutcome(result *ConfirmationResult, err error) string {
	var confirmErr *ConfirmationFailedError
	switch {
	case err == nil && result != nil && result.Confirmed:
		return "confirmed"
	case errors.As(err, &confirmErr):
		return "not_confirmed"
	case errors.Is(err, ErrWalletNotConnected):
		return "wallet_not_connected"
	case errors.Is(err, ErrSigningFailed):
		return "signing_failed"
	default:
		return "error"
	}
}
