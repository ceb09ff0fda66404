package temporal

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrSubmissionNotFound is returned when no workflow exists for an id.
var ErrSubmissionNotFound = errors.New("submission not found")

// SubmissionStatus is the state of a submission workflow. Result is set once
// the workflow has completed.
type SubmissionStatus struct {
	WorkflowID string                `json:"workflow_id"`
	State      string                `json:"state"` // "running", "completed", "failed", ...
	Result     *SubmitTransferResult `json:"result,omitempty"`
}

// SubmissionScheduler starts submission workflows and reports on them.
type SubmissionScheduler interface {
	// StartSubmitTransfer starts a SubmitTransferWorkflow and returns its id.
	StartSubmitTransfer(ctx context.Context, input SubmitTransferInput) (string, error)

	// GetSubmitTransfer returns the status of a workflow started by
	// StartSubmitTransfer. Unknown ids yield ErrSubmissionNotFound.
	GetSubmitTransfer(ctx context.Context, workflowID string) (*SubmissionStatus, error)
}

// newWorkflowID returns a fresh id for a submission workflow.
func newWorkflowID() string {
	return "submit-transfer-" + uuid.New().String()
}
