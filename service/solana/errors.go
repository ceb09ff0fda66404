package solana

import (
	"errors"
	"fmt"
)

var (
	// ErrWalletNotConnected is returned when a submission is attempted without
	// a connected wallet that exposes an account address.
	ErrWalletNotConnected = errors.New("wallet not connected")

	// ErrSigningFailed wraps any rejection or failure reported by the wallet
	// while signing and sending.
	ErrSigningFailed = errors.New("signing failed")

	// ErrNetworkUnavailable wraps transport failures talking to the RPC node.
	ErrNetworkUnavailable = errors.New("network unavailable")

	// ErrInvalidTransaction is returned when a pending transaction breaks the
	// transfer-then-memo layout.
	ErrInvalidTransaction = errors.New("invalid transaction")

	// ErrInvalidSignature is returned when a signature string does not decode.
	ErrInvalidSignature = errors.New("invalid signature")
)

// ConfirmationFailedError reports that the ledger answered but did not
// confirm the transaction.
type ConfirmationFailedError struct {
	Detail string
}

func (e *ConfirmationFailedError) Error() string {
	return fmt.Sprintf("transaction failed to confirm: %s", e.Detail)
}
