package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// ErrNotFound is returned when the server answers 404.
var ErrNotFound = errors.New("not found")

// APIError is a non-success response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// Transfer is the outcome of a submission run by the server.
type Transfer struct {
	WorkflowID  string    `json:"workflow_id,omitempty"`
	Signature   string    `json:"signature,omitempty"`
	Sender      string    `json:"sender"`
	Recipient   string    `json:"recipient"`
	Amount      uint64    `json:"amount"`
	Note        string    `json:"note,omitempty"`
	Outcome     string    `json:"outcome"`
	Confirmed   bool      `json:"confirmed"`
	ErrorDetail *string   `json:"error_detail,omitempty"`
	Error       string    `json:"error,omitempty"`
	FinishedAt  time.Time `json:"finished_at"`
}

// TransferStatus reports a durable submission started with Submit.
type TransferStatus struct {
	WorkflowID string          `json:"workflow_id"`
	State      string          `json:"state"`
	Result     *TransferResult `json:"result,omitempty"`
}

// TransferResult is the workflow's view of a finished submission.
type TransferResult struct {
	WorkflowID  string    `json:"workflow_id"`
	Sender      string    `json:"sender,omitempty"`
	Recipient   string    `json:"recipient"`
	Amount      uint64    `json:"amount"`
	Note        string    `json:"note,omitempty"`
	Signature   *string   `json:"signature,omitempty"`
	Confirmed   bool      `json:"confirmed"`
	ErrorDetail *string   `json:"error_detail,omitempty"`
	Outcome     string    `json:"outcome"`
	Status      string    `json:"status"`
	Error       *string   `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Memo is the decoded JSON memo of a transfer.
type Memo struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Authentication is the server's verdict on a signature.
type Authentication struct {
	Signature     string  `json:"signature"`
	Authenticated bool    `json:"authenticated"`
	Wallet        *string `json:"wallet,omitempty"`
	Amount        uint64  `json:"amount,omitempty"`
	Memo          *Memo   `json:"memo,omitempty"`
	RawMemo       *string `json:"raw_memo,omitempty"`
	Message       string  `json:"message,omitempty"`
}

// Recipient describes the account that receives every transfer.
type Recipient struct {
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

// Client is the HTTP client for the memotransfer service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new service client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		// Inline submissions wait for confirmation before answering.
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Health returns nil when the server answers its health check.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}
	return nil
}

// Submit asks the server to send one transfer from its wallet. When the
// server runs submissions durably the returned Transfer only carries
// WorkflowID; use GetTransfer or AwaitTransfer to follow it. A transfer that
// was sent but failed is returned together with an *APIError when the server
// reports a non-200 status.
func (c *Client) Submit(ctx context.Context, sender, note string) (*Transfer, error) {
	body, err := json.Marshal(map[string]string{
		"sender": sender,
		"note":   note,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/v1/transfers", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var transfer Transfer
	decodeErr := json.Unmarshal(data, &transfer)

	switch {
	case resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusOK:
		if decodeErr != nil {
			return nil, fmt.Errorf("failed to decode response: %w", decodeErr)
		}
		c.logger.DebugContext(ctx, "transfer submitted",
			"workflow_id", transfer.WorkflowID,
			"signature", transfer.Signature,
			"outcome", transfer.Outcome,
		)
		return &transfer, nil
	case decodeErr == nil && transfer.Outcome != "":
		return &transfer, &APIError{StatusCode: resp.StatusCode, Message: transfer.Error}
	default:
		return nil, errorFromBody(resp.StatusCode, data)
	}
}

// GetTransfer returns the status of a durable submission.
func (c *Client) GetTransfer(ctx context.Context, workflowID string) (*TransferStatus, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/transfers/"+url.PathEscape(workflowID), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var status TransferStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &status, nil
}

// AwaitTransfer polls GetTransfer until the workflow leaves the running
// state or ctx ends.
func (c *Client) AwaitTransfer(ctx context.Context, workflowID string, interval time.Duration) (*TransferStatus, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := c.GetTransfer(ctx, workflowID)
		if err != nil {
			return nil, err
		}
		if status.State != "running" {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %s: %w", workflowID, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Authenticate checks a transaction signature against the chain.
func (c *Client) Authenticate(ctx context.Context, signature string) (*Authentication, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/authenticate/"+url.PathEscape(signature), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var auth Authentication
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &auth, nil
}

// Recipient describes the recipient account.
func (c *Client) Recipient(ctx context.Context) (*Recipient, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/recipient", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var recipient Recipient
	if err := json.NewDecoder(resp.Body).Decode(&recipient); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &recipient, nil
}

// LogTransaction sends a client-side transaction log entry. entry must be a
// JSON object.
func (c *Client) LogTransaction(ctx context.Context, entry json.RawMessage) error {
	resp, err := c.do(ctx, http.MethodPost, "/api/v1/transactions/log", entry)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return errorFromBody(resp.StatusCode, body)
}

func errorFromBody(statusCode int, body []byte) error {
	var errResp struct {
		Error string `json:"error"`
	}

	msg := string(body)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		msg = errResp.Error
	}

	apiErr := &APIError{StatusCode: statusCode, Message: msg}
	if statusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %w", ErrNotFound, apiErr)
	}
	return apiErr
}
