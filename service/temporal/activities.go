package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/memotransfer/service/metrics"
	natspkg "github.com/brojonat/memotransfer/service/nats"
	"github.com/brojonat/memotransfer/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"go.temporal.io/sdk/activity"
)

// SubmitTransferInput is the workflow input. Sender is optional; when set it
// must be the worker wallet's account.
type SubmitTransferInput struct {
	Sender string `json:"sender,omitempty"`
	Note   string `json:"note,omitempty"`
}

// SubmitTransferActivityInput contains parameters for the SubmitTransfer activity.
type SubmitTransferActivityInput struct {
	Sender    string    `json:"sender,omitempty"`
	Note      string    `json:"note,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// SubmitTransferResult is the outcome of one submission attempt.
type SubmitTransferResult struct {
	WorkflowID  string    `json:"workflow_id"`
	Sender      string    `json:"sender,omitempty"`
	Recipient   string    `json:"recipient"`
	Amount      uint64    `json:"amount"`
	Note        string    `json:"note,omitempty"`
	Signature   *string   `json:"signature,omitempty"`
	Confirmed   bool      `json:"confirmed"`
	ErrorDetail *string   `json:"error_detail,omitempty"`
	Outcome     string    `json:"outcome"`
	Status      string    `json:"status"` // "confirmed" or "failed"
	Error       *string   `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// PublishSubmissionInput contains parameters for the PublishSubmission activity.
type PublishSubmissionInput struct {
	Result SubmitTransferResult `json:"result"`
}

// RecordWorkflowDurationInput contains parameters for the RecordWorkflowDuration activity.
type RecordWorkflowDurationInput struct {
	Status   string        `json:"status"`
	Duration time.Duration `json:"duration"`
}

// SubmitterInterface runs one submission attempt.
// This allows for easy mocking in tests.
type SubmitterInterface interface {
	Run(ctx context.Context, intent solana.TransferIntent, wallet solana.WalletSession, ledger solana.LedgerClient) (*solana.Submission, error)
}

// PublisherInterface defines the NATS publishing operations needed by activities.
// This allows for easy mocking in tests.
type PublisherInterface interface {
	PublishSubmission(ctx context.Context, event *natspkg.SubmissionEvent) error
}

// Activities holds the dependencies needed by Temporal activities.
// Following go-kit pattern, all dependencies are explicit.
type Activities struct {
	submitter SubmitterInterface
	wallet    solana.WalletSession
	ledger    solana.LedgerClient
	publisher PublisherInterface // optional
	metrics   *metrics.Metrics
	logger    *slog.Logger

	heartbeatInterval time.Duration
}

// NewActivities creates a new Activities instance with explicit dependencies.
// If publisher is nil, events are not published. If metrics is nil, no
// metrics will be recorded.
func NewActivities(
	submitter SubmitterInterface,
	wallet solana.WalletSession,
	ledger solana.LedgerClient,
	publisher PublisherInterface,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		submitter:         submitter,
		wallet:            wallet,
		ledger:            ledger,
		publisher:         publisher,
		metrics:           m,
		logger:            logger,
		heartbeatInterval: 10 * time.Second,
	}
}

// SubmitTransfer performs one submission with the worker's wallet. Every
// submission outcome, including failures, is returned as a result; an error
// is returned only when the input cannot be used.
func (a *Activities) SubmitTransfer(ctx context.Context, input SubmitTransferActivityInput) (*SubmitTransferResult, error) {
	start := time.Now()
	status := "success"
	defer func() {
		if a.metrics != nil {
			a.metrics.RecordActivityDuration("SubmitTransfer", status, time.Since(start).Seconds())
		}
	}()

	var sender solanago.PublicKey
	if input.Sender != "" {
		pk, err := solanago.PublicKeyFromBase58(input.Sender)
		if err != nil {
			status = "error"
			a.logger.ErrorContext(ctx, "invalid sender address", "sender", input.Sender, "error", err)
			return nil, fmt.Errorf("invalid sender address: %w", err)
		}
		sender = pk
	}

	// Confirmation can take most of a minute; keep Temporal informed.
	heartbeatCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.heartbeat(ctx, heartbeatCtx, "awaiting confirmation")

	intent := solana.NewTransferIntent(sender, input.Note)
	sub, err := a.submitter.Run(ctx, intent, a.wallet, a.ledger)
	if err != nil {
		status = "error"
	}

	result := resultFromEvent(natspkg.NewSubmissionEvent(intent, sub, err))
	result.StartedAt = input.StartedAt

	a.logger.InfoContext(ctx, "submission attempt finished",
		"sender", result.Sender,
		"outcome", result.Outcome,
		"signature", result.Signature,
	)

	return result, nil
}

// PublishSubmission publishes the outcome of a submission to NATS.
func (a *Activities) PublishSubmission(ctx context.Context, input PublishSubmissionInput) error {
	start := time.Now()
	status := "success"
	defer func() {
		if a.metrics != nil {
			a.metrics.RecordActivityDuration("PublishSubmission", status, time.Since(start).Seconds())
		}
	}()

	if a.publisher == nil {
		a.logger.DebugContext(ctx, "no publisher configured, skipping submission event")
		return nil
	}

	event := eventFromResult(input.Result)
	if err := a.publisher.PublishSubmission(ctx, event); err != nil {
		status = "error"
		a.logger.ErrorContext(ctx, "failed to publish submission event",
			"workflow_id", input.Result.WorkflowID,
			"error", err,
		)
		return fmt.Errorf("failed to publish submission event: %w", err)
	}

	return nil
}

// RecordWorkflowDuration observes the end-to-end duration of one workflow run.
func (a *Activities) RecordWorkflowDuration(ctx context.Context, input RecordWorkflowDurationInput) error {
	if a.metrics == nil {
		return nil
	}
	a.metrics.RecordWorkflowDuration(input.Status, input.Duration.Seconds())
	return nil
}

func (a *Activities) heartbeat(activityCtx, done context.Context, details string) {
	ticker := time.NewTicker(a.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done.Done():
			return
		case <-ticker.C:
			activity.RecordHeartbeat(activityCtx, details)
		}
	}
}

func resultFromEvent(event *natspkg.SubmissionEvent) *SubmitTransferResult {
	result := &SubmitTransferResult{
		Sender:      event.Sender,
		Recipient:   event.Recipient,
		Amount:      event.Amount,
		Note:        event.Note,
		Confirmed:   event.Confirmed,
		ErrorDetail: event.ErrorDetail,
		Outcome:     event.Outcome,
		Status:      StatusFailed,
		FinishedAt:  event.FinishedAt,
	}
	if event.Confirmed {
		result.Status = StatusConfirmed
	}
	if event.Signature != "" {
		sig := event.Signature
		result.Signature = &sig
	}
	if event.Error != "" {
		msg := event.Error
		result.Error = &msg
	}
	return result
}

func eventFromResult(result SubmitTransferResult) *natspkg.SubmissionEvent {
	event := &natspkg.SubmissionEvent{
		WorkflowID:  result.WorkflowID,
		Sender:      result.Sender,
		Recipient:   result.Recipient,
		Amount:      result.Amount,
		Note:        result.Note,
		Outcome:     result.Outcome,
		Confirmed:   result.Confirmed,
		ErrorDetail: result.ErrorDetail,
		FinishedAt:  result.FinishedAt,
	}
	if result.Signature != nil {
		event.Signature = *result.Signature
	}
	if result.Error != nil {
		event.Error = *result.Error
	}
	return event
}
