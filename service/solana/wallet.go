package solana

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
)

// TransactionSender is the part of the ledger a KeypairWallet needs to get a
// signed transaction onto the network.
type TransactionSender interface {
	GetLatestReference(ctx context.Context) (Reference, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (TransactionID, error)
}

// KeypairWallet is a WalletSession backed by a local keypair. It signs
// without prompting, which makes it suitable for the CLI and the worker.
type KeypairWallet struct {
	key    solana.PrivateKey
	sender TransactionSender
	logger *slog.Logger
}

// NewKeypairWallet wraps an in-memory private key.
func NewKeypairWallet(key solana.PrivateKey, sender TransactionSender, logger *slog.Logger) *KeypairWallet {
	if logger == nil {
		logger = slog.Default()
	}
	return &KeypairWallet{
		key:    key,
		sender: sender,
		logger: logger,
	}
}

// LoadKeypairWallet reads a solana-keygen JSON keypair file.
func LoadKeypairWallet(path string, sender TransactionSender, logger *slog.Logger) (*KeypairWallet, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load keypair from %s: %w", path, err)
	}
	return NewKeypairWallet(key, sender, logger), nil
}

// IsConnected reports whether the wallet holds a usable key.
func (w *KeypairWallet) IsConnected() bool {
	return w != nil && len(w.key) == ed25519.PrivateKeySize && w.sender != nil
}

// AccountAddress returns the public key of the keypair.
func (w *KeypairWallet) AccountAddress() (solana.PublicKey, bool) {
	if !w.IsConnected() {
		return solana.PublicKey{}, false
	}
	return w.key.PublicKey(), true
}

// SignAndSend compiles tx against a fresh blockhash, signs it with the
// keypair and submits it.
func (w *KeypairWallet) SignAndSend(ctx context.Context, tx *PendingTransaction) (TransactionID, error) {
	owner, ok := w.AccountAddress()
	if !ok {
		return "", ErrWalletNotConnected
	}

	payer, err := tx.FeePayer()
	if err != nil {
		return "", err
	}
	if !payer.Equals(owner) {
		return "", fmt.Errorf("fee payer %s is not this wallet (%s)", payer, owner)
	}

	ref, err := w.sender.GetLatestReference(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get recent blockhash: %w", err)
	}

	compiled, err := tx.Compile(ref.Blockhash)
	if err != nil {
		return "", err
	}

	if _, err := compiled.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(owner) {
			return &w.key
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	w.logger.DebugContext(ctx, "signed transaction",
		"account", owner.String(),
		"blockhash", ref.Blockhash.String(),
		"instructions", len(compiled.Message.Instructions),
	)

	return w.sender.SendTransaction(ctx, compiled)
}
