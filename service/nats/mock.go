package nats

import (
	"context"
	"sync"
)

// MockPublisher is a mock implementation of Publisher for testing.
type MockPublisher struct {
	mu           sync.RWMutex
	submissions  []*SubmissionEvent
	logs         []*LogEvent
	publishError error
	closed       bool
}

// NewMockPublisher creates a new mock publisher for testing.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		submissions: make([]*SubmissionEvent, 0),
		logs:        make([]*LogEvent, 0),
	}
}

// PublishSubmission records the event and returns any configured error.
func (m *MockPublisher) PublishSubmission(ctx context.Context, event *SubmissionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}

	m.submissions = append(m.submissions, event)
	return nil
}

// PublishLog records the event and returns any configured error.
func (m *MockPublisher) PublishLog(ctx context.Context, event *LogEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}

	m.logs = append(m.logs, event)
	return nil
}

// Close marks the publisher as closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// GetSubmissions returns all published submission events (for testing).
func (m *MockPublisher) GetSubmissions() []*SubmissionEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Return a copy to avoid race conditions
	events := make([]*SubmissionEvent, len(m.submissions))
	copy(events, m.submissions)
	return events
}

// GetLogs returns all published log events (for testing).
func (m *MockPublisher) GetLogs() []*LogEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*LogEvent, len(m.logs))
	copy(events, m.logs)
	return events
}

// GetSubmissionsForSender returns submission events published for a sender.
func (m *MockPublisher) GetSubmissionsForSender(sender string) []*SubmissionEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*SubmissionEvent, 0)
	for _, event := range m.submissions {
		if event.Sender == sender {
			events = append(events, event)
		}
	}
	return events
}

// SetPublishError configures the mock to return an error on every publish.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// Reset clears all published events and errors.
func (m *MockPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions = make([]*SubmissionEvent, 0)
	m.logs = make([]*LogEvent, 0)
	m.publishError = nil
	m.closed = false
}

// IsClosed returns whether the publisher has been closed.
func (m *MockPublisher) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
