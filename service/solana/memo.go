package solana

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
)

// DefaultNote is used when an intent carries no note.
const DefaultNote = "Hello"

// memoTimestampLayout matches JavaScript's Date.toISOString output so memos
// written by this service and by browser wallets look the same on chain.
const memoTimestampLayout = "2006-01-02T15:04:05.000Z"

// MemoPayload is the JSON document carried in the memo instruction.
type MemoPayload struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// NewMemoPayload builds the memo for a sender at the given instant.
func NewMemoPayload(note string, sender solana.PublicKey, at time.Time) MemoPayload {
	if strings.TrimSpace(note) == "" {
		note = DefaultNote
	}
	return MemoPayload{
		Message:   note + " from " + sender.String(),
		Timestamp: at.UTC().Format(memoTimestampLayout),
	}
}

// Bytes returns the UTF-8 JSON encoding placed in the instruction data.
// HTML characters are left unescaped, as JSON.stringify does.
func (m MemoPayload) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("failed to encode memo payload: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Time parses the payload timestamp.
func (m MemoPayload) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, m.Timestamp)
}

// ParseMemoPayload decodes memo instruction data back into a payload.
// Both fields must be present.
func ParseMemoPayload(data []byte) (*MemoPayload, error) {
	var m MemoPayload
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode memo payload: %w", err)
	}
	if m.Message == "" || m.Timestamp == "" {
		return nil, fmt.Errorf("memo payload missing message or timestamp")
	}
	return &m, nil
}
