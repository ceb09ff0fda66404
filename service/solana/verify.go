package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
)

// TransactionFetcher loads a parsed transaction by signature.
type TransactionFetcher interface {
	GetTransaction(ctx context.Context, signature solana.Signature) (*Transaction, error)
}

// Authentication is the outcome of checking a signature against the chain.
type Authentication struct {
	Signature     string       `json:"signature"`
	Authenticated bool         `json:"authenticated"`
	Wallet        *string      `json:"wallet,omitempty"`
	Amount        uint64       `json:"amount,omitempty"`
	Memo          *MemoPayload `json:"memo,omitempty"`
	RawMemo       *string      `json:"raw_memo,omitempty"`
	Message       string       `json:"message,omitempty"`
}

// Verifier authenticates a wallet by a transaction it sent: the signature must
// belong to a successful transaction that pays the recipient.
type Verifier struct {
	fetcher   TransactionFetcher
	recipient solana.PublicKey
	logger    *slog.Logger
}

// NewVerifier creates a Verifier for transfers to recipient.
func NewVerifier(fetcher TransactionFetcher, recipient solana.PublicKey, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{
		fetcher:   fetcher,
		recipient: recipient,
		logger:    logger,
	}
}

// Authenticate looks up signature on chain. A malformed signature is an
// error; an unknown or non-qualifying transaction is reported with
// Authenticated=false.
func (v *Verifier) Authenticate(ctx context.Context, signature string) (*Authentication, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidSignature, signature, err)
	}

	auth := &Authentication{Signature: sig.String()}

	txn, err := v.fetcher.GetTransaction(ctx, sig)
	if errors.Is(err, ErrTransactionNotFound) {
		auth.Message = "Signature not found"
		return auth, nil
	}
	if err != nil {
		return nil, err
	}

	if txn.Memo != nil {
		auth.RawMemo = txn.Memo
		if memo, err := ParseMemoPayload([]byte(*txn.Memo)); err == nil {
			auth.Memo = memo
		}
	}

	transfer, paysRecipient := txn.TransferTo(v.recipient.String())
	switch {
	case txn.Err != nil:
		auth.Message = *txn.Err
	case !paysRecipient:
		auth.Message = "transaction does not transfer to the recipient"
	case transfer.From == "":
		auth.Message = "transaction sender could not be determined"
	default:
		auth.Authenticated = true
		auth.Wallet = &transfer.From
		auth.Amount = transfer.Amount
	}

	v.logger.InfoContext(ctx, "signature checked",
		"signature", auth.Signature,
		"authenticated", auth.Authenticated,
		"message", auth.Message,
	)

	return auth, nil
}
