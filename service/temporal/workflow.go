package temporal

import (
	"fmt"
	"time"

	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var a *Activities // for type-safe activity invocation

// Workflow status values reported in SubmitTransferResult.Status.
const (
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
)

// SubmitTransferWorkflow runs exactly one submission attempt on the worker's
// wallet and publishes the outcome.
//
// The workflow performs these steps:
// 1. Build, sign, send and confirm the transfer (SubmitTransfer activity)
// 2. Publish the outcome to NATS (PublishSubmission activity, best effort)
// 3. Record the workflow duration once (RecordWorkflowDuration activity)
// 4. Return the outcome
//
// The submit activity has MaximumAttempts 1: a failed attempt is reported,
// never repeated. The workflow itself completes without error for every
// submission outcome so callers can read the result.
func SubmitTransferWorkflow(ctx workflow.Context, input SubmitTransferInput) (*SubmitTransferResult, error) {
	logger := workflow.GetLogger(ctx)
	info := workflow.GetInfo(ctx)
	logger.Info("SubmitTransferWorkflow started", "sender", input.Sender)

	submitCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 3 * time.Minute,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy: &temporalsdk.RetryPolicy{
			MaximumAttempts: 1,
		},
	})

	activityInput := SubmitTransferActivityInput{
		Sender:    input.Sender,
		Note:      input.Note,
		StartedAt: workflow.Now(ctx),
	}

	var result *SubmitTransferResult
	err := workflow.ExecuteActivity(submitCtx, a.SubmitTransfer, activityInput).Get(ctx, &result)
	if err != nil {
		logger.Error("submit activity failed", "error", err)
		errMsg := fmt.Sprintf("submit activity failed: %v", err)
		result = &SubmitTransferResult{
			Sender:    input.Sender,
			Outcome:   "error",
			Status:    StatusFailed,
			Error:     &errMsg,
			StartedAt: activityInput.StartedAt,
		}
	}
	result.WorkflowID = info.WorkflowExecution.ID

	logger.Info("submission finished",
		"outcome", result.Outcome,
		"signature", result.Signature,
	)

	publishCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    3,
		},
	})
	err = workflow.ExecuteActivity(publishCtx, a.PublishSubmission, PublishSubmissionInput{Result: *result}).Get(ctx, nil)
	if err != nil {
		// The submission already happened; a lost event does not change it.
		logger.Warn("failed to publish submission event", "error", err)
	}

	metricsCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy: &temporalsdk.RetryPolicy{
			MaximumAttempts: 1,
		},
	})
	durationInput := RecordWorkflowDurationInput{
		Status:   result.Status,
		Duration: workflow.Now(ctx).Sub(activityInput.StartedAt),
	}
	if err := workflow.ExecuteActivity(metricsCtx, a.RecordWorkflowDuration, durationInput).Get(ctx, nil); err != nil {
		logger.Warn("failed to record workflow duration", "error", err)
	}

	logger.Info("SubmitTransferWorkflow completed",
		"status", result.Status,
		"outcome", result.Outcome,
	)

	return result, nil
}
