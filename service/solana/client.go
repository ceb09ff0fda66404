package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/memotransfer/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// ErrTransactionNotFound is returned when the node has no record of a signature.
var ErrTransactionNotFound = errors.New("transaction not found")

// DefaultConfirmPollInterval is how often a confirmation wait checks the
// signature status.
const DefaultConfirmPollInterval = 2 * time.Second

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)

	GetBlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)

	GetSignatureStatuses(
		ctx context.Context,
		searchTransactionHistory bool,
		signatures ...solana.Signature,
	) (*rpc.GetSignatureStatusesResult, error)

	SendTransaction(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)

	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)

	GetSignaturesForAddress(
		ctx context.Context,
		address solana.PublicKey,
		opts *rpc.GetSignaturesForAddressOpts,
	) ([]*rpc.TransactionSignature, error)

	GetTransaction(
		ctx context.Context,
		signature solana.Signature,
		opts *rpc.GetTransactionOpts,
	) (*rpc.GetTransactionResult, error)
}

// Client is the ledger side of a submission: it hands out confirmation
// references, sends signed transactions and waits for confirmation.
// It wraps the RPC client with domain-specific operations.
type Client struct {
	rpc          RPCClient
	logger       *slog.Logger
	metrics      *metrics.Metrics
	endpoint     string // RPC endpoint identifier for metrics (e.g., "mainnet", "devnet", rpc host)
	commitment   rpc.CommitmentType
	pollInterval time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithCommitment sets the commitment level used for blockhashes, preflight
// and confirmation. The default is "confirmed".
func WithCommitment(commitment rpc.CommitmentType) ClientOption {
	return func(c *Client) {
		c.commitment = commitment
	}
}

// WithConfirmPollInterval sets how often Confirm checks signature status.
func WithConfirmPollInterval(interval time.Duration) ClientOption {
	return func(c *Client) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

// NewClient creates a new Solana client.
// The endpoint parameter is used for metrics labeling (e.g., "mainnet", "devnet", or RPC hostname).
// If metrics is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint string, m *metrics.Metrics, logger *slog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		rpc:          rpcClient,
		logger:       logger,
		metrics:      m,
		endpoint:     endpoint,
		commitment:   rpc.CommitmentConfirmed,
		pollInterval: DefaultConfirmPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Commitment returns the commitment level this client confirms at.
func (c *Client) Commitment() rpc.CommitmentType {
	return c.commitment
}

// GetLatestReference returns the freshest blockhash and the block height up to
// which it stays valid.
func (c *Client) GetLatestReference(ctx context.Context) (Reference, error) {
	start := time.Now()
	out, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
	c.record("GetLatestBlockhash", start, err)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get latest blockhash", "error", err)
		return Reference{}, classifyRPCError(err)
	}
	if out == nil || out.Value == nil {
		return Reference{}, fmt.Errorf("%w: empty blockhash response", ErrNetworkUnavailable)
	}

	ref := Reference{
		Blockhash:            out.Value.Blockhash,
		LastValidBlockHeight: out.Value.LastValidBlockHeight,
	}
	c.logger.DebugContext(ctx, "fetched latest reference",
		"blockhash", ref.Blockhash.String(),
		"last_valid_block_height", ref.LastValidBlockHeight,
	)
	return ref, nil
}

// SendTransaction submits a signed transaction and returns its id.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (TransactionID, error) {
	start := time.Now()
	sig, err := c.rpc.SendTransaction(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: c.commitment,
	})
	c.record("SendTransaction", start, err)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to send transaction", "error", err)
		return "", classifyRPCError(err)
	}

	c.logger.InfoContext(ctx, "transaction sent", "signature", sig.String())
	return TransactionID(sig.String()), nil
}

// Confirm waits once for the transaction to reach the client's commitment.
// It returns Confirmed=false with a detail when the transaction failed on
// chain or the reference expired before confirmation. Transport failures and
// context cancellation are returned as errors.
func (c *Client) Confirm(ctx context.Context, id TransactionID, ref Reference) (*ConfirmationResult, error) {
	sig, err := id.Signature()
	if err != nil {
		return nil, fmt.Errorf("invalid transaction id %q: %w", id, err)
	}

	start := time.Now()
	checks := 0
	finish := func(result *ConfirmationResult) (*ConfirmationResult, error) {
		if c.metrics != nil {
			c.metrics.RecordConfirmationWait(c.endpoint, result.Confirmed, time.Since(start).Seconds(), checks)
		}
		c.logger.InfoContext(ctx, "confirmation wait finished",
			"signature", id.String(),
			"confirmed", result.Confirmed,
			"checks", checks,
			"duration", time.Since(start),
		)
		return result, nil
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		checks++
		status, err := c.signatureStatus(ctx, sig)
		if err != nil {
			return nil, err
		}

		if status != nil {
			if status.Err != nil {
				detail := fmt.Sprintf("%v", status.Err)
				return finish(&ConfirmationResult{Confirmed: false, ErrorDetail: &detail})
			}
			if commitmentReached(status.ConfirmationStatus, c.commitment) {
				return finish(&ConfirmationResult{Confirmed: true})
			}
		}

		height, err := c.blockHeight(ctx)
		if err != nil {
			return nil, err
		}
		if height > ref.LastValidBlockHeight {
			detail := fmt.Sprintf("block height exceeded: current %d, last valid %d", height, ref.LastValidBlockHeight)
			return finish(&ConfirmationResult{Confirmed: false, ErrorDetail: &detail})
		}

		c.logger.DebugContext(ctx, "transaction not yet confirmed",
			"signature", id.String(),
			"block_height", height,
			"last_valid_block_height", ref.LastValidBlockHeight,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// GetTransaction fetches and parses a specific transaction by signature.
func (c *Client) GetTransaction(ctx context.Context, signature solana.Signature) (*Transaction, error) {
	txnOpts := &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     c.commitment,
		MaxSupportedTransactionVersion: &[]uint64{0}[0],
	}

	start := time.Now()
	result, err := c.rpc.GetTransaction(ctx, signature, txnOpts)
	c.record("GetTransaction", start, err)
	if errors.Is(err, rpc.ErrNotFound) || (err == nil && result == nil) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get transaction",
			"signature", signature.String(),
			"error", err,
		)
		return nil, classifyRPCError(err)
	}

	return parseTransactionFromResult(signature, result)
}

// DescribeAccount returns the account state of address and the most recent
// transaction touching it. A missing account is reported with Found=false.
func (c *Client) DescribeAccount(ctx context.Context, address solana.PublicKey) (*AccountSummary, error) {
	summary := &AccountSummary{Address: address.String()}

	start := time.Now()
	info, err := c.rpc.GetAccountInfo(ctx, address)
	c.record("GetAccountInfo", start, err)
	switch {
	case errors.Is(err, rpc.ErrNotFound):
		c.logger.DebugContext(ctx, "account not found", "address", address.String())
	case err != nil:
		c.logger.ErrorContext(ctx, "failed to get account info", "address", address.String(), "error", err)
		return nil, classifyRPCError(err)
	case info != nil && info.Value != nil:
		account := info.Value
		summary.Found = true
		summary.Lamports = account.Lamports
		summary.Owner = account.Owner.String()
		summary.Executable = account.Executable
		if account.RentEpoch != nil {
			summary.RentEpoch = account.RentEpoch.String()
		}
		if account.Data != nil {
			summary.Data = string(account.Data.GetBinary())
		}
	}

	limit := 1
	start = time.Now()
	signatures, err := c.rpc.GetSignaturesForAddress(ctx, address, &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: c.commitment,
	})
	c.record("GetSignaturesForAddress", start, err)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get signatures", "address", address.String(), "error", err)
		return nil, classifyRPCError(err)
	}
	if len(signatures) == 0 {
		return summary, nil
	}

	latest := signatures[0].Signature.String()
	summary.LatestSignature = &latest

	txn, err := c.GetTransaction(ctx, signatures[0].Signature)
	if err != nil {
		// The signature is still useful without the sender.
		c.logger.WarnContext(ctx, "failed to load latest transaction, returning signature only",
			"signature", latest,
			"error", err,
		)
		return summary, nil
	}
	summary.LatestSender = txn.FeePayer

	return summary, nil
}

func (c *Client) signatureStatus(ctx context.Context, sig solana.Signature) (*rpc.SignatureStatusesResult, error) {
	start := time.Now()
	out, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
	c.record("GetSignatureStatuses", start, err)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get signature status", "signature", sig.String(), "error", err)
		return nil, classifyRPCError(err)
	}
	if out == nil || len(out.Value) == 0 {
		return nil, nil
	}
	return out.Value[0], nil
}

func (c *Client) blockHeight(ctx context.Context) (uint64, error) {
	start := time.Now()
	height, err := c.rpc.GetBlockHeight(ctx, c.commitment)
	c.record("GetBlockHeight", start, err)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get block height", "error", err)
		return 0, classifyRPCError(err)
	}
	return height, nil
}

func (c *Client) record(method string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordRPCCall(method, status, c.endpoint, time.Since(start).Seconds())
}

// commitmentReached reports whether status is at least as final as target.
func commitmentReached(status rpc.ConfirmationStatusType, target rpc.CommitmentType) bool {
	rank := map[string]int{
		string(rpc.ConfirmationStatusProcessed): 1,
		string(rpc.ConfirmationStatusConfirmed): 2,
		string(rpc.ConfirmationStatusFinalized): 3,
	}
	got, ok := rank[string(status)]
	if !ok {
		return false
	}
	want, ok := rank[string(target)]
	if !ok {
		want = rank[string(rpc.ConfirmationStatusConfirmed)]
	}
	return got >= want
}

// classifyRPCError passes JSON-RPC error responses and context errors through
// and marks everything else as a transport failure.
func classifyRPCError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrNetworkUnavailable, err)
}
