package solana

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	txns map[string]*Transaction
	err  error
}

func (f *fakeFetcher) GetTransaction(ctx context.Context, signature solana.Signature) (*Transaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	txn, ok := f.txns[signature.String()]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	return txn, nil
}

func strPtr(s string) *string { return &s }

func TestVerifier_Authenticate(t *testing.T) {
	sig := solana.Signature{3, 1, 4}
	memo := `{"message":"Hello from 9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM","timestamp":"2024-03-01T17:30:45.123Z"}`

	tests := []struct {
		name      string
		txn       *Transaction
		wantAuth  bool
		wantMsg   string
		wantMemo  bool
		wantValue uint64
	}{
		{
			name: "transfer to recipient",
			txn: &Transaction{
				Transfers: []NativeTransfer{{From: testSender.String(), To: RecipientAddress.String(), Amount: TransferAmountLamports}},
				Memo:      strPtr(memo),
			},
			wantAuth:  true,
			wantMemo:  true,
			wantValue: TransferAmountLamports,
		},
		{
			name: "recipient transfer followed by another",
			txn: &Transaction{
				Transfers: []NativeTransfer{
					{From: testSender.String(), To: RecipientAddress.String(), Amount: TransferAmountLamports},
					{From: testSender.String(), To: "So11111111111111111111111111111111111111112", Amount: 5000},
				},
				Memo: strPtr(memo),
			},
			wantAuth:  true,
			wantMemo:  true,
			wantValue: TransferAmountLamports,
		},
		{
			name: "failed on chain",
			txn: &Transaction{
				Transfers: []NativeTransfer{{From: testSender.String(), To: RecipientAddress.String()}},
				Err:       strPtr("transaction failed: InsufficientFunds"),
			},
			wantMsg: "transaction failed: InsufficientFunds",
		},
		{
			name: "pays someone else",
			txn: &Transaction{
				Transfers: []NativeTransfer{{From: testSender.String(), To: "So11111111111111111111111111111111111111112"}},
				Memo:      strPtr("not json"),
			},
			wantMsg: "transaction does not transfer to the recipient",
		},
		{
			name:     "no transfer",
			txn:      &Transaction{Memo: strPtr(memo)},
			wantMsg:  "transaction does not transfer to the recipient",
			wantMemo: true,
		},
		{
			name:    "unknown sender",
			txn:     &Transaction{Transfers: []NativeTransfer{{To: RecipientAddress.String()}}},
			wantMsg: "transaction sender could not be determined",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewVerifier(&fakeFetcher{txns: map[string]*Transaction{sig.String(): tt.txn}}, RecipientAddress, discardLogger())

			auth, err := v.Authenticate(context.Background(), sig.String())
			require.NoError(t, err)

			assert.Equal(t, sig.String(), auth.Signature)
			assert.Equal(t, tt.wantAuth, auth.Authenticated)
			assert.Equal(t, tt.wantMsg, auth.Message)
			assert.Equal(t, tt.wantValue, auth.Amount)
			if tt.wantAuth {
				require.NotNil(t, auth.Wallet)
				assert.Equal(t, testSender.String(), *auth.Wallet)
			} else {
				assert.Nil(t, auth.Wallet)
			}
			if tt.wantMemo {
				require.NotNil(t, auth.Memo)
				assert.Contains(t, auth.Memo.Message, testSender.String())
			} else {
				assert.Nil(t, auth.Memo)
			}
		})
	}
}

func TestVerifier_SignatureNotFound(t *testing.T) {
	v := NewVerifier(&fakeFetcher{}, RecipientAddress, discardLogger())

	auth, err := v.Authenticate(context.Background(), solana.Signature{1}.String())
	require.NoError(t, err)
	assert.False(t, auth.Authenticated)
	assert.Equal(t, "Signature not found", auth.Message)
}

func TestVerifier_InvalidSignature(t *testing.T) {
	v := NewVerifier(&fakeFetcher{}, RecipientAddress, discardLogger())

	_, err := v.Authenticate(context.Background(), "sig123")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifier_FetchError(t *testing.T) {
	v := NewVerifier(&fakeFetcher{err: ErrNetworkUnavailable}, RecipientAddress, discardLogger())

	_, err := v.Authenticate(context.Background(), solana.Signature{1}.String())
	assert.True(t, errors.Is(err, ErrNetworkUnavailable))
}

func TestVerifier_ParsedTransferFollowedByAnother(t *testing.T) {
	sig := solana.Signature{9}
	other := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

	transferData := func(lamports uint64) []byte {
		data := make([]byte, 12)
		binary.LittleEndian.PutUint32(data[0:4], SystemProgramTransferInstruction)
		binary.LittleEndian.PutUint64(data[4:12], lamports)
		return data
	}

	txn, err := ParseTransaction(&solana.Transaction{
		Message: solana.Message{
			AccountKeys: []solana.PublicKey{testSender, RecipientAddress, other, SystemProgramID},
			Instructions: []solana.CompiledInstruction{
				{ProgramIDIndex: 3, Accounts: []uint16{0, 1}, Data: transferData(TransferAmountLamports)},
				{ProgramIDIndex: 3, Accounts: []uint16{0, 2}, Data: transferData(5000)},
			},
		},
	})
	require.NoError(t, err)

	v := NewVerifier(&fakeFetcher{txns: map[string]*Transaction{sig.String(): txn}}, RecipientAddress, discardLogger())
	auth, err := v.Authenticate(context.Background(), sig.String())
	require.NoError(t, err)

	assert.True(t, auth.Authenticated, auth.Message)
	assert.Equal(t, TransferAmountLamports, auth.Amount)
	require.NotNil(t, auth.Wallet)
	assert.Equal(t, testSender.String(), *auth.Wallet)
}
