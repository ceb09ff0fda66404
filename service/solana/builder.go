package solana

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

const (
	// TransferAmountLamports is the fixed amount sent by every submission (0.001 SOL).
	TransferAmountLamports uint64 = 1_000_000

	// DevnetRPCURL is the public devnet endpoint used when none is configured.
	DevnetRPCURL = "https://api.devnet.solana.com"
)

// RecipientAddress receives every transfer.
var RecipientAddress = solana.MustPublicKeyFromBase58("JLoZ8cWwv6hPYR1dshN61scNHwF9DAA257YtVjZfB3E")

// NewTransferIntent returns the intent for a sender using the fixed recipient
// and amount.
func NewTransferIntent(sender solana.PublicKey, note string) TransferIntent {
	return TransferIntent{
		Sender:    sender,
		Recipient: RecipientAddress,
		Amount:    TransferAmountLamports,
		Note:      note,
	}
}

// Instruction is one unit of on-chain work in a PendingTransaction.
// The concrete types are ValueTransfer and AttachedMemo.
type Instruction interface {
	// Build converts the instruction into its solana-go wire form.
	Build() (solana.Instruction, error)
	isInstruction()
}

// ValueTransfer moves native lamports through the system program.
type ValueTransfer struct {
	From   solana.PublicKey
	To     solana.PublicKey
	Amount uint64
}

func (ValueTransfer) isInstruction() {}

// Build returns the system program transfer instruction.
func (v ValueTransfer) Build() (solana.Instruction, error) {
	ins, err := system.NewTransferInstruction(v.Amount, v.From, v.To).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}
	return ins, nil
}

// AttachedMemo carries an opaque payload through the memo program, signed by
// Signer.
type AttachedMemo struct {
	Signer    solana.PublicKey
	Payload   []byte
	ProgramID solana.PublicKey
}

func (AttachedMemo) isInstruction() {}

// Build returns a generic instruction addressed to the memo program.
func (m AttachedMemo) Build() (solana.Instruction, error) {
	if m.ProgramID.IsZero() {
		return nil, fmt.Errorf("%w: memo program id is required", ErrInvalidTransaction)
	}
	return solana.NewInstruction(
		m.ProgramID,
		solana.AccountMetaSlice{solana.NewAccountMeta(m.Signer, true, true)},
		m.Payload,
	), nil
}

// PendingTransaction is an ordered list of instructions that has not been
// signed yet.
type PendingTransaction struct {
	Instructions []Instruction
}

// Transfer returns the leading value transfer, if any.
func (p *PendingTransaction) Transfer() (ValueTransfer, bool) {
	if len(p.Instructions) == 0 {
		return ValueTransfer{}, false
	}
	v, ok := p.Instructions[0].(ValueTransfer)
	return v, ok
}

// FeePayer is the sender of the leading transfer.
func (p *PendingTransaction) FeePayer() (solana.PublicKey, error) {
	v, ok := p.Transfer()
	if !ok {
		return solana.PublicKey{}, fmt.Errorf("%w: first instruction must be a value transfer", ErrInvalidTransaction)
	}
	return v.From, nil
}

// Validate checks the transfer-then-memo layout: the first instruction is a
// value transfer, nothing else is a transfer, and every memo is signed by the
// transfer's sender.
func (p *PendingTransaction) Validate() error {
	transfer, ok := p.Transfer()
	if !ok {
		return fmt.Errorf("%w: first instruction must be a value transfer", ErrInvalidTransaction)
	}
	for i, ins := range p.Instructions[1:] {
		switch v := ins.(type) {
		case AttachedMemo:
			if !v.Signer.Equals(transfer.From) {
				return fmt.Errorf("%w: memo at index %d signed by %s, transfer sender is %s",
					ErrInvalidTransaction, i+1, v.Signer, transfer.From)
			}
		case ValueTransfer:
			return fmt.Errorf("%w: unexpected second transfer at index %d", ErrInvalidTransaction, i+1)
		default:
			return fmt.Errorf("%w: unknown instruction %T at index %d", ErrInvalidTransaction, ins, i+1)
		}
	}
	return nil
}

// SolanaInstructions converts the pending instructions in order.
func (p *PendingTransaction) SolanaInstructions() ([]solana.Instruction, error) {
	out := make([]solana.Instruction, 0, len(p.Instructions))
	for i, ins := range p.Instructions {
		built, err := ins.Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build instruction %d: %w", i, err)
		}
		out = append(out, built)
	}
	return out, nil
}

// Compile produces an unsigned legacy transaction anchored to blockhash with
// the transfer sender as fee payer.
func (p *PendingTransaction) Compile(blockhash solana.Hash) (*solana.Transaction, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	payer, err := p.FeePayer()
	if err != nil {
		return nil, err
	}
	instructions, err := p.SolanaInstructions()
	if err != nil {
		return nil, err
	}
	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return nil, fmt.Errorf("failed to compile transaction: %w", err)
	}
	return tx, nil
}

// BuildPendingTransaction turns an intent into [transfer, memo]. The memo
// timestamp is taken from at.
func BuildPendingTransaction(intent TransferIntent, at time.Time) (*PendingTransaction, error) {
	if intent.Sender.IsZero() {
		return nil, fmt.Errorf("%w: sender is required", ErrInvalidTransaction)
	}
	if intent.Recipient.IsZero() {
		return nil, fmt.Errorf("%w: recipient is required", ErrInvalidTransaction)
	}
	if intent.Amount == 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidTransaction)
	}

	payload, err := NewMemoPayload(intent.Note, intent.Sender, at).Bytes()
	if err != nil {
		return nil, err
	}

	pending := &PendingTransaction{
		Instructions: []Instruction{
			ValueTransfer{
				From:   intent.Sender,
				To:     intent.Recipient,
				Amount: intent.Amount,
			},
			AttachedMemo{
				Signer:    intent.Sender,
				Payload:   payload,
				ProgramID: MemoProgramIDSPL,
			},
		},
	}
	if err := pending.Validate(); err != nil {
		return nil, err
	}
	return pending, nil
}
