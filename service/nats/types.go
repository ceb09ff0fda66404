package nats

import (
	"encoding/json"
	"time"

	"github.com/brojonat/memotransfer/service/solana"
)

// SubmissionEvent describes one finished submission attempt.
// This is published to the subject "submissions.{sender}" in JetStream.
type SubmissionEvent struct {
	// Correlation
	WorkflowID string `json:"workflow_id,omitempty"`
	Signature  string `json:"signature,omitempty"`

	// Transfer
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
	Note      string `json:"note,omitempty"`

	// Outcome
	Outcome     string  `json:"outcome"`
	Confirmed   bool    `json:"confirmed"`
	ErrorDetail *string `json:"error_detail,omitempty"`
	Error       string  `json:"error,omitempty"`

	// Metadata
	FinishedAt  time.Time `json:"finished_at"`
	PublishedAt time.Time `json:"published_at"`
}

// NewSubmissionEvent builds the event for an attempt. sub may be nil when the
// attempt failed before the wallet returned a transaction id; intent then
// supplies the transfer fields.
func NewSubmissionEvent(intent solana.TransferIntent, sub *solana.Submission, err error) *SubmissionEvent {
	var result *solana.ConfirmationResult
	if sub != nil {
		intent = sub.Intent
		result = sub.Result
	}

	event := &SubmissionEvent{
		Recipient:  intent.Recipient.String(),
		Amount:     intent.Amount,
		Note:       intent.Note,
		Outcome:    solana.SubmissionOutcome(result, err),
		FinishedAt: time.Now().UTC(),
	}
	if !intent.Sender.IsZero() {
		event.Sender = intent.Sender.String()
	}
	if sub != nil {
		event.Signature = sub.ID.String()
	}
	if result != nil {
		event.Confirmed = result.Confirmed
		event.ErrorDetail = result.ErrorDetail
	}
	if err != nil {
		event.Error = err.Error()
	}
	return event
}

// LogEvent is a client-reported transaction log entry.
// This is published to the subject "txlogs.{sender}" in JetStream, or
// "txlogs.unknown" when the entry names no sender.
type LogEvent struct {
	Sender     string          `json:"sender,omitempty"`
	Signature  string          `json:"signature,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"received_at"`

	PublishedAt time.Time `json:"published_at"`
}
