package nats

import (
	"context"
	"errors"
	"testing"

	"github.com/brojonat/memotransfer/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sender = solanago.MustPublicKeyFromBase58("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")

func TestSubjects(t *testing.T) {
	assert.Equal(t, "submissions."+sender.String(), SubmissionSubject(sender.String()))
	assert.Equal(t, "txlogs."+sender.String(), LogSubject(sender.String()))
	assert.Equal(t, "txlogs.unknown", LogSubject(""))
	assert.Equal(t, "txlogs.unknown", LogSubject("a.b"))
	assert.Equal(t, "submissions.unknown", SubmissionSubject("*"))
	assert.Equal(t, []string{"submissions.*", "txlogs.*"}, StreamSubjects)
}

func TestNewSubmissionEvent_Confirmed(t *testing.T) {
	intent := solana.NewTransferIntent(sender, "gm")
	sub := &solana.Submission{
		Intent: intent,
		ID:     "sig123",
		Result: &solana.ConfirmationResult{Confirmed: true},
	}

	event := NewSubmissionEvent(intent, sub, nil)

	assert.Equal(t, sender.String(), event.Sender)
	assert.Equal(t, solana.RecipientAddress.String(), event.Recipient)
	assert.Equal(t, solana.TransferAmountLamports, event.Amount)
	assert.Equal(t, "gm", event.Note)
	assert.Equal(t, "sig123", event.Signature)
	assert.Equal(t, "confirmed", event.Outcome)
	assert.True(t, event.Confirmed)
	assert.Empty(t, event.Error)
	assert.False(t, event.FinishedAt.IsZero())
}

func TestNewSubmissionEvent_NotConfirmed(t *testing.T) {
	detail := "block height exceeded"
	intent := solana.NewTransferIntent(sender, "")
	sub := &solana.Submission{
		Intent: intent,
		ID:     "sig123",
		Result: &solana.ConfirmationResult{ErrorDetail: &detail},
	}

	event := NewSubmissionEvent(intent, sub, &solana.ConfirmationFailedError{Detail: detail})

	assert.Equal(t, "not_confirmed", event.Outcome)
	assert.False(t, event.Confirmed)
	require.NotNil(t, event.ErrorDetail)
	assert.Equal(t, detail, *event.ErrorDetail)
	assert.Contains(t, event.Error, detail)
}

func TestNewSubmissionEvent_BeforeSigning(t *testing.T) {
	intent := solana.NewTransferIntent(solanago.PublicKey{}, "")

	event := NewSubmissionEvent(intent, nil, solana.ErrWalletNotConnected)

	assert.Equal(t, "wallet_not_connected", event.Outcome)
	assert.Empty(t, event.Sender)
	assert.Empty(t, event.Signature)
	assert.Equal(t, "wallet not connected", event.Error)
}

func TestMockPublisher(t *testing.T) {
	ctx := context.Background()
	m := NewMockPublisher()

	require.NoError(t, m.PublishSubmission(ctx, &SubmissionEvent{Sender: "a"}))
	require.NoError(t, m.PublishSubmission(ctx, &SubmissionEvent{Sender: "b"}))
	require.NoError(t, m.PublishLog(ctx, &LogEvent{Sender: "a"}))

	assert.Len(t, m.GetSubmissions(), 2)
	assert.Len(t, m.GetSubmissionsForSender("a"), 1)
	assert.Len(t, m.GetLogs(), 1)

	m.SetPublishError(errors.New("nats down"))
	assert.Error(t, m.PublishSubmission(ctx, &SubmissionEvent{}))
	assert.Error(t, m.PublishLog(ctx, &LogEvent{}))

	require.NoError(t, m.Close())
	assert.True(t, m.IsClosed())

	m.Reset()
	assert.Empty(t, m.GetSubmissions())
	assert.False(t, m.IsClosed())
}
