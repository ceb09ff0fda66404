package solana

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// TransferIntent is what the user asked for: move Amount lamports from Sender
// to Recipient and attach a note. Values are created fresh for every attempt.
type TransferIntent struct {
	Sender    solana.PublicKey
	Recipient solana.PublicKey
	Amount    uint64 // lamports
	Note      string
}

// TransactionID is the base58 signature returned once a wallet has signed and
// sent a transaction. It is only used to look up confirmation status.
type TransactionID string

func (id TransactionID) String() string {
	return string(id)
}

// Signature parses the id as a Solana signature.
func (id TransactionID) Signature() (solana.Signature, error) {
	return solana.SignatureFromBase58(string(id))
}

// Reference is the confirmation anchor: a recent blockhash and the last block
// height at which a transaction referencing it is still valid.
type Reference struct {
	Blockhash            solana.Hash
	LastValidBlockHeight uint64
}

// ConfirmationResult is the outcome of a single confirmation wait.
type ConfirmationResult struct {
	Confirmed   bool    `json:"confirmed"`
	ErrorDetail *string `json:"error_detail,omitempty"`
}

// NativeTransfer is one System Program transfer inside a transaction.
// From or To is empty when the account index could not be resolved.
type NativeTransfer struct {
	From   string
	To     string
	Amount uint64
}

// Transaction represents a parsed Solana transaction.
// This is our domain model, independent of the RPC response format.
// Amount, ToAddress and FromAddress describe the first native transfer;
// Transfers lists all of them in instruction order.
type Transaction struct {
	Signature   string
	Slot        uint64
	BlockTime   time.Time
	Amount      uint64
	ToAddress   *string // recipient of the first native transfer, nil if none
	Memo        *string // parsed from transaction instructions
	FromAddress *string // source of the first native transfer, nil if cannot be determined
	FeePayer    *string // first account key, the wallet that paid fees
	Err         *string // nil if transaction succeeded, contains error message if failed
	Transfers   []NativeTransfer
}

// TransferTo returns the first native transfer whose destination is to.
func (t *Transaction) TransferTo(to string) (NativeTransfer, bool) {
	for _, tr := range t.Transfers {
		if tr.To == to {
			return tr, true
		}
	}
	return NativeTransfer{}, false
}

// AccountSummary is a snapshot of an on-chain account plus the most recent
// transaction that touched it.
type AccountSummary struct {
	Address         string  `json:"address"`
	Found           bool    `json:"found"`
	Lamports        uint64  `json:"lamports,omitempty"`
	Owner           string  `json:"owner,omitempty"`
	Executable      bool    `json:"executable"`
	RentEpoch       string  `json:"rent_epoch,omitempty"`
	Data            string  `json:"data,omitempty"`
	LatestSignature *string `json:"latest_transaction_signature"`
	LatestSender    *string `json:"sender_wallet"`
}
