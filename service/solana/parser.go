package solana

import (
	"encoding/binary"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Well-known Solana program IDs
var (
	// SystemProgramID is the native SOL transfer program
	SystemProgramID = solana.SystemProgramID

	// MemoProgramIDSPL is the SPL Memo program (most common)
	MemoProgramIDSPL = solana.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")

	// MemoProgramIDLegacy is the legacy memo program (v1)
	MemoProgramIDLegacy = solana.MustPublicKeyFromBase58("Memo1UhkJRfHyvLMcVucJwxXeuD728EqVDDwQDxFMNo")
)

// System Program instruction types
const (
	SystemProgramTransferInstruction = uint32(2)
)

// ParseTransaction extracts the native transfer and memo from a decoded
// transaction. Signature, slot and block time are left for the caller.
func ParseTransaction(tx *solana.Transaction) (*Transaction, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction is nil")
	}

	txn := &Transaction{}
	if len(tx.Signatures) > 0 {
		txn.Signature = tx.Signatures[0].String()
	}

	accountKeys := tx.Message.AccountKeys
	if len(accountKeys) > 0 {
		payer := accountKeys[0].String()
		txn.FeePayer = &payer
	}
	for _, instruction := range tx.Message.Instructions {
		if int(instruction.ProgramIDIndex) >= len(accountKeys) {
			return nil, fmt.Errorf("program index %d out of bounds", instruction.ProgramIDIndex)
		}
		programID := accountKeys[instruction.ProgramIDIndex]

		// Parse System Program transfers (native SOL)
		if programID.Equals(SystemProgramID) {
			if amount, fromAddr, toAddr, err := parseSystemTransfer(instruction, accountKeys); err == nil {
				transfer := NativeTransfer{Amount: amount}
				if fromAddr != nil {
					transfer.From = fromAddr.String()
				}
				if toAddr != nil {
					transfer.To = toAddr.String()
				}
				if len(txn.Transfers) == 0 {
					txn.Amount = amount
					if transfer.From != "" {
						txn.FromAddress = &transfer.From
					}
					if transfer.To != "" {
						txn.ToAddress = &transfer.To
					}
				}
				txn.Transfers = append(txn.Transfers, transfer)
			}
		}

		// Parse memo
		if programID.Equals(MemoProgramIDSPL) || programID.Equals(MemoProgramIDLegacy) {
			if memo := parseMemo(instruction.Data); memo != "" {
				txn.Memo = &memo
			}
		}
	}

	return txn, nil
}

// parseTransactionFromResult parses a full GetTransactionResult.
func parseTransactionFromResult(signature solana.Signature, result *rpc.GetTransactionResult) (*Transaction, error) {
	if result == nil || result.Transaction == nil {
		return nil, fmt.Errorf("transaction %s not available", signature)
	}

	// Decode the transaction
	tx, err := result.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}

	txn, err := ParseTransaction(tx)
	if err != nil {
		return nil, err
	}
	txn.Signature = signature.String()
	txn.Slot = result.Slot

	// Convert block time (Unix timestamp)
	if result.BlockTime != nil {
		txn.BlockTime = result.BlockTime.Time()
	} else {
		txn.BlockTime = time.Time{}
	}

	// Check if transaction failed
	if result.Meta != nil && result.Meta.Err != nil {
		errMsg := fmt.Sprintf("transaction failed: %v", result.Meta.Err)
		txn.Err = &errMsg
	}

	return txn, nil
}

// parseSystemTransfer extracts the amount, source and destination from a
// System Program Transfer instruction.
func parseSystemTransfer(instruction solana.CompiledInstruction, accountKeys []solana.PublicKey) (uint64, *solana.PublicKey, *solana.PublicKey, error) {
	// System Transfer instruction format:
	// [0..4]  = instruction type (u32, should be 2 for Transfer)
	// [4..12] = lamports (u64)

	if len(instruction.Data) < 12 {
		return 0, nil, nil, fmt.Errorf("instruction data too short: %d bytes", len(instruction.Data))
	}

	instructionType := binary.LittleEndian.Uint32(instruction.Data[0:4])
	if instructionType != SystemProgramTransferInstruction {
		return 0, nil, nil, fmt.Errorf("not a transfer instruction: type %d", instructionType)
	}

	amount := binary.LittleEndian.Uint64(instruction.Data[4:12])

	// System Transfer accounts: [from, to]
	var fromAddr, toAddr *solana.PublicKey
	if len(instruction.Accounts) >= 1 && int(instruction.Accounts[0]) < len(accountKeys) {
		addr := accountKeys[instruction.Accounts[0]]
		fromAddr = &addr
	}
	if len(instruction.Accounts) >= 2 && int(instruction.Accounts[1]) < len(accountKeys) {
		addr := accountKeys[instruction.Accounts[1]]
		toAddr = &addr
	}

	return amount, fromAddr, toAddr, nil
}

// parseMemo extracts the memo text from a Memo Program instruction.
// Memo data is raw UTF-8; anything else is dropped.
func parseMemo(data []byte) string {
	if !utf8.Valid(data) {
		return ""
	}
	return string(data)
}
