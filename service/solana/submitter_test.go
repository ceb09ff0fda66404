package solana

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/brojonat/memotransfer/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWallet struct {
	connected  bool
	account    solana.PublicKey
	hasAccount bool

	id  TransactionID
	err error

	signed []*PendingTransaction
}

func (w *fakeWallet) IsConnected() bool { return w.connected }

func (w *fakeWallet) AccountAddress() (solana.PublicKey, bool) {
	return w.account, w.hasAccount
}

func (w *fakeWallet) SignAndSend(ctx context.Context, tx *PendingTransaction) (TransactionID, error) {
	w.signed = append(w.signed, tx)
	if w.err != nil {
		return "", w.err
	}
	return w.id, nil
}

type fakeLedger struct {
	ref    Reference
	refErr error

	result     *ConfirmationResult
	confirmErr error

	refCalls     int
	confirmCalls int
	confirmedID  TransactionID
	confirmedRef Reference
}

func (l *fakeLedger) GetLatestReference(ctx context.Context) (Reference, error) {
	l.refCalls++
	return l.ref, l.refErr
}

func (l *fakeLedger) Confirm(ctx context.Context, id TransactionID, ref Reference) (*ConfirmationResult, error) {
	l.confirmCalls++
	l.confirmedID = id
	l.confirmedRef = ref
	if l.confirmErr != nil {
		return nil, l.confirmErr
	}
	return l.result, nil
}

func connectedWallet() *fakeWallet {
	return &fakeWallet{connected: true, account: testSender, hasAccount: true, id: "sig123"}
}

func newTestSubmitter() *Submitter {
	return NewSubmitter(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSubmit_Confirmed(t *testing.T) {
	wallet := connectedWallet()
	ledger := &fakeLedger{
		ref:    Reference{Blockhash: solana.Hash{1}, LastValidBlockHeight: 150},
		result: &ConfirmationResult{Confirmed: true},
	}

	result, err := newTestSubmitter().Submit(context.Background(), NewTransferIntent(solana.PublicKey{}, ""), wallet, ledger)
	require.NoError(t, err)
	assert.True(t, result.Confirmed)

	require.Len(t, wallet.signed, 1, "wallet asked to sign exactly once")
	assert.Equal(t, 1, ledger.refCalls)
	assert.Equal(t, 1, ledger.confirmCalls)
	assert.Equal(t, TransactionID("sig123"), ledger.confirmedID)
	assert.Equal(t, ledger.ref, ledger.confirmedRef)
}

func TestSubmit_TransactionShape(t *testing.T) {
	at := time.Date(2024, 3, 1, 17, 30, 45, 500_000_000, time.UTC)
	wallet := connectedWallet()
	ledger := &fakeLedger{result: &ConfirmationResult{Confirmed: true}}

	_, err := newTestSubmitter().
		WithClock(func() time.Time { return at }).
		Submit(context.Background(), NewTransferIntent(solana.PublicKey{}, ""), wallet, ledger)
	require.NoError(t, err)
	require.Len(t, wallet.signed, 1)

	tx := wallet.signed[0]
	require.Len(t, tx.Instructions, 2)

	transfer, ok := tx.Instructions[0].(ValueTransfer)
	require.True(t, ok)
	assert.Equal(t, testSender, transfer.From)
	assert.Equal(t, RecipientAddress, transfer.To)
	assert.Equal(t, uint64(1_000_000), transfer.Amount)

	memo, ok := tx.Instructions[1].(AttachedMemo)
	require.True(t, ok)
	assert.Equal(t, "MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr", memo.ProgramID.String())

	payload, err := ParseMemoPayload(memo.Payload)
	require.NoError(t, err)
	assert.Contains(t, payload.Message, testSender.String())
	assert.Equal(t, "2024-03-01T17:30:45.500Z", payload.Timestamp)
}

func TestSubmit_WalletNotConnected(t *testing.T) {
	tests := []struct {
		name   string
		wallet WalletSession
	}{
		{name: "nil wallet", wallet: nil},
		{name: "disconnected", wallet: &fakeWallet{connected: false, account: testSender, hasAccount: true}},
		{name: "no active account", wallet: &fakeWallet{connected: true}},
		{name: "zero account", wallet: &fakeWallet{connected: true, hasAccount: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := &fakeLedger{result: &ConfirmationResult{Confirmed: true}}

			result, err := newTestSubmitter().Submit(context.Background(), NewTransferIntent(solana.PublicKey{}, ""), tt.wallet, ledger)

			assert.ErrorIs(t, err, ErrWalletNotConnected)
			assert.Nil(t, result)
			assert.Equal(t, 0, ledger.refCalls, "ledger must not be contacted")
			assert.Equal(t, 0, ledger.confirmCalls)
			if fw, ok := tt.wallet.(*fakeWallet); ok {
				assert.Empty(t, fw.signed, "wallet must not be asked to sign")
			}
		})
	}
}

func TestSubmit_SigningRejected(t *testing.T) {
	rejection := errors.New("User rejected the request.")
	wallet := connectedWallet()
	wallet.err = rejection
	ledger := &fakeLedger{result: &ConfirmationResult{Confirmed: true}}

	result, err := newTestSubmitter().Submit(context.Background(), NewTransferIntent(solana.PublicKey{}, ""), wallet, ledger)

	assert.ErrorIs(t, err, ErrSigningFailed)
	assert.ErrorIs(t, err, rejection)
	assert.Nil(t, result)
	assert.Len(t, wallet.signed, 1)
	assert.Equal(t, 0, ledger.confirmCalls, "no confirmation after a failed signature")
}

func TestSubmit_NotConfirmed(t *testing.T) {
	detail := "block height exceeded"
	wallet := connectedWallet()
	ledger := &fakeLedger{result: &ConfirmationResult{Confirmed: false, ErrorDetail: &detail}}

	result, err := newTestSubmitter().Submit(context.Background(), NewTransferIntent(solana.PublicKey{}, ""), wallet, ledger)

	var confirmErr *ConfirmationFailedError
	require.ErrorAs(t, err, &confirmErr)
	assert.Equal(t, detail, confirmErr.Detail)
	assert.Equal(t, "transaction failed to confirm: block height exceeded", err.Error())
	require.NotNil(t, result)
	assert.False(t, result.Confirmed)
	assert.Equal(t, 1, ledger.confirmCalls, "no retry after a failed confirmation")
	assert.Len(t, wallet.signed, 1)
}

func TestSubmit_NotConfirmedWithoutDetail(t *testing.T) {
	ledger := &fakeLedger{result: &ConfirmationResult{Confirmed: false}}

	_, err := newTestSubmitter().Submit(context.Background(), NewTransferIntent(solana.PublicKey{}, ""), connectedWallet(), ledger)

	var confirmErr *ConfirmationFailedError
	require.ErrorAs(t, err, &confirmErr)
	assert.Empty(t, confirmErr.Detail)
}

func TestSubmit_ReferenceNetworkUnavailable(t *testing.T) {
	wallet := connectedWallet()
	ledger := &fakeLedger{refErr: ErrNetworkUnavailable}

	result, err := newTestSubmitter().Submit(context.Background(), NewTransferIntent(solana.PublicKey{}, ""), wallet, ledger)

	assert.ErrorIs(t, err, ErrNetworkUnavailable)
	assert.Nil(t, result)
	assert.Equal(t, 0, ledger.confirmCalls)
	assert.Len(t, wallet.signed, 1)
}

func TestSubmit_ConfirmNetworkUnavailable(t *testing.T) {
	ledger := &fakeLedger{confirmErr: ErrNetworkUnavailable}

	result, err := newTestSubmitter().Submit(context.Background(), NewTransferIntent(solana.PublicKey{}, ""), connectedWallet(), ledger)

	assert.ErrorIs(t, err, ErrNetworkUnavailable)
	assert.Nil(t, result)
	assert.Equal(t, 1, ledger.confirmCalls)
}

func TestSubmit_SenderMismatch(t *testing.T) {
	other := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	wallet := connectedWallet()
	ledger := &fakeLedger{result: &ConfirmationResult{Confirmed: true}}

	_, err := newTestSubmitter().Submit(context.Background(), NewTransferIntent(other, ""), wallet, ledger)

	assert.ErrorIs(t, err, ErrInvalidTransaction)
	assert.Empty(t, wallet.signed)
	assert.Equal(t, 0, ledger.refCalls)
}

func TestSubmit_ExplicitSenderMatchingWallet(t *testing.T) {
	wallet := connectedWallet()
	ledger := &fakeLedger{result: &ConfirmationResult{Confirmed: true}}

	result, err := newTestSubmitter().Submit(context.Background(), NewTransferIntent(testSender, "gm"), wallet, ledger)
	require.NoError(t, err)
	assert.True(t, result.Confirmed)
}

func TestSubmit_IndependentCalls(t *testing.T) {
	s := newTestSubmitter()
	wallet := connectedWallet()
	ledger := &fakeLedger{result: &ConfirmationResult{Confirmed: true}}

	for i := 0; i < 3; i++ {
		_, err := s.Submit(context.Background(), NewTransferIntent(solana.PublicKey{}, ""), wallet, ledger)
		require.NoError(t, err)
	}

	assert.Len(t, wallet.signed, 3)
	assert.Equal(t, 3, ledger.confirmCalls)
	assert.NotSame(t, wallet.signed[0], wallet.signed[1], "each submission builds a fresh transaction")
}

func TestSubmissionOutcome(t *testing.T) {
	assert.Equal(t, "confirmed", SubmissionOutcome(&ConfirmationResult{Confirmed: true}, nil))
	assert.Equal(t, "not_confirmed", SubmissionOutcome(&ConfirmationResult{}, &ConfirmationFailedError{}))
	assert.Equal(t, "wallet_not_connected", SubmissionOutcome(nil, ErrWalletNotConnected))
	assert.Equal(t, "signing_failed", SubmissionOutcome(nil, errors.Join(ErrSigningFailed, errors.New("rejected"))))
	assert.Equal(t, "error", SubmissionOutcome(nil, ErrNetworkUnavailable))
}

func TestRun_ReturnsID(t *testing.T) {
	detail := "block height exceeded"
	ledger := &fakeLedger{result: &ConfirmationResult{Confirmed: false, ErrorDetail: &detail}}

	sub, err := newTestSubmitter().Run(context.Background(), NewTransferIntent(solana.PublicKey{}, ""), connectedWallet(), ledger)

	var confirmErr *ConfirmationFailedError
	require.ErrorAs(t, err, &confirmErr)
	require.NotNil(t, sub)
	assert.Equal(t, TransactionID("sig123"), sub.ID)
	assert.Equal(t, testSender, sub.Intent.Sender)
	require.NotNil(t, sub.Result)
	assert.False(t, sub.Result.Confirmed)
}

func TestRun_ConfirmErrorKeepsID(t *testing.T) {
	ledger := &fakeLedger{confirmErr: ErrNetworkUnavailable}

	sub, err := newTestSubmitter().Run(context.Background(), NewTransferIntent(solana.PublicKey{}, ""), connectedWallet(), ledger)

	assert.ErrorIs(t, err, ErrNetworkUnavailable)
	require.NotNil(t, sub)
	assert.Equal(t, TransactionID("sig123"), sub.ID)
	assert.Nil(t, sub.Result)
}

func TestSubmit_WithMetrics(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	s := NewSubmitter(m, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := s.Submit(context.Background(), NewTransferIntent(solana.PublicKey{}, ""), nil, &fakeLedger{})
	assert.ErrorIs(t, err, ErrWalletNotConnected)
}
