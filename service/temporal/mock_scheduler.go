package temporal

import (
	"context"
	"fmt"
	"sync"
)

// MockScheduler is a mock implementation of SubmissionScheduler for testing.
type MockScheduler struct {
	mu       sync.Mutex
	started  []SubmitTransferInput
	statuses map[string]*SubmissionStatus
	startErr error
	getErr   error
}

// NewMockScheduler creates a new MockScheduler.
func NewMockScheduler() *MockScheduler {
	return &MockScheduler{
		statuses: make(map[string]*SubmissionStatus),
	}
}

// StartSubmitTransfer records the input and registers a running workflow.
func (m *MockScheduler) StartSubmitTransfer(ctx context.Context, input SubmitTransferInput) (string, error) {
	if m.startErr != nil {
		return "", m.startErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := fmt.Sprintf("submit-transfer-%d", len(m.started)+1)
	m.started = append(m.started, input)
	m.statuses[id] = &SubmissionStatus{WorkflowID: id, State: "running"}
	return id, nil
}

// GetSubmitTransfer returns the recorded status for id.
func (m *MockScheduler) GetSubmitTransfer(ctx context.Context, workflowID string) (*SubmissionStatus, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	status, ok := m.statuses[workflowID]
	if !ok {
		return nil, ErrSubmissionNotFound
	}
	return status, nil
}

// Complete marks a workflow as completed with result (for testing).
func (m *MockScheduler) Complete(workflowID string, result *SubmitTransferResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[workflowID] = &SubmissionStatus{
		WorkflowID: workflowID,
		State:      "completed",
		Result:     result,
	}
}

// Started returns the inputs passed to StartSubmitTransfer (for testing).
func (m *MockScheduler) Started() []SubmitTransferInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SubmitTransferInput, len(m.started))
	copy(out, m.started)
	return out
}

// SetStartError sets an error to return from StartSubmitTransfer.
func (m *MockScheduler) SetStartError(err error) {
	m.startErr = err
}

// SetGetError sets an error to return from GetSubmitTransfer.
func (m *MockScheduler) SetGetError(err error) {
	m.getErr = err
}

// Verify MockScheduler implements SubmissionScheduler interface
var _ SubmissionScheduler = (*MockScheduler)(nil)

// Verify Client implements SubmissionScheduler interface
var _ SubmissionScheduler = (*Client)(nil)
