package temporal

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"
)

func stringPtr(s string) *string {
	return &s
}

func TestSubmitTransferWorkflow(t *testing.T) {
	sender := "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"

	tests := []struct {
		name           string
		input          SubmitTransferInput
		mockActivities func(submitMock, publishMock *testsuite.MockCallWrapper)
		validateResult func(*testing.T, *SubmitTransferResult)
	}{
		{
			name:  "confirmed submission",
			input: SubmitTransferInput{Sender: sender, Note: "gm"},
			mockActivities: func(submitMock, publishMock *testsuite.MockCallWrapper) {
				submitMock.Return(&SubmitTransferResult{
					Sender:    sender,
					Amount:    1_000_000,
					Note:      "gm",
					Signature: stringPtr("sig1"),
					Confirmed: true,
					Outcome:   "confirmed",
					Status:    StatusConfirmed,
				}, nil)
				publishMock.Return(nil)
			},
			validateResult: func(t *testing.T, result *SubmitTransferResult) {
				assert.Equal(t, StatusConfirmed, result.Status)
				assert.True(t, result.Confirmed)
				require.NotNil(t, result.Signature)
				assert.Equal(t, "sig1", *result.Signature)
				assert.NotEmpty(t, result.WorkflowID)
				assert.Nil(t, result.Error)
			},
		},
		{
			name:  "not confirmed on chain",
			input: SubmitTransferInput{Sender: sender},
			mockActivities: func(submitMock, publishMock *testsuite.MockCallWrapper) {
				submitMock.Return(&SubmitTransferResult{
					Sender:      sender,
					Signature:   stringPtr("sig2"),
					Confirmed:   false,
					ErrorDetail: stringPtr("block height exceeded"),
					Outcome:     "not_confirmed",
					Status:      StatusFailed,
					Error:       stringPtr("transaction failed to confirm: block height exceeded"),
				}, nil)
				publishMock.Return(nil)
			},
			validateResult: func(t *testing.T, result *SubmitTransferResult) {
				assert.Equal(t, StatusFailed, result.Status)
				assert.Equal(t, "not_confirmed", result.Outcome)
				require.NotNil(t, result.ErrorDetail)
				assert.Equal(t, "block height exceeded", *result.ErrorDetail)
			},
		},
		{
			name:  "submit activity error",
			input: SubmitTransferInput{Sender: "invalid"},
			mockActivities: func(submitMock, publishMock *testsuite.MockCallWrapper) {
				submitMock.Return(nil, errors.New("invalid sender address"))
				publishMock.Return(nil)
			},
			validateResult: func(t *testing.T, result *SubmitTransferResult) {
				assert.Equal(t, StatusFailed, result.Status)
				assert.Equal(t, "error", result.Outcome)
				assert.Equal(t, "invalid", result.Sender)
				require.NotNil(t, result.Error)
				assert.Contains(t, *result.Error, "invalid sender address")
				assert.Nil(t, result.Signature)
			},
		},
		{
			name:  "publish failure does not fail the workflow",
			input: SubmitTransferInput{},
			mockActivities: func(submitMock, publishMock *testsuite.MockCallWrapper) {
				submitMock.Return(&SubmitTransferResult{
					Sender:    sender,
					Signature: stringPtr("sig3"),
					Confirmed: true,
					Outcome:   "confirmed",
					Status:    StatusConfirmed,
				}, nil)
				publishMock.Return(errors.New("nats unavailable"))
			},
			validateResult: func(t *testing.T, result *SubmitTransferResult) {
				assert.Equal(t, StatusConfirmed, result.Status)
				assert.Nil(t, result.Error)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testSuite := &testsuite.WorkflowTestSuite{}
			env := testSuite.NewTestWorkflowEnvironment()

			// Register activities first (before mocking)
			activities := &Activities{}
			env.RegisterActivity(activities.SubmitTransfer)
			env.RegisterActivity(activities.PublishSubmission)
			env.RegisterActivity(activities.RecordWorkflowDuration)

			submitMock := env.OnActivity(activities.SubmitTransfer, mock.Anything, mock.Anything)
			publishMock := env.OnActivity(activities.PublishSubmission, mock.Anything, mock.Anything)
			tt.mockActivities(submitMock, publishMock)

			env.ExecuteWorkflow(SubmitTransferWorkflow, tt.input)

			require.True(t, env.IsWorkflowCompleted())
			assert.NoError(t, env.GetWorkflowError())

			var result SubmitTransferResult
			require.NoError(t, env.GetWorkflowResult(&result))
			tt.validateResult(t, &result)
		})
	}
}

func TestSubmitTransferWorkflow_NoRetry(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	activities := &Activities{}
	env.RegisterActivity(activities.SubmitTransfer)
	env.RegisterActivity(activities.PublishSubmission)
	env.RegisterActivity(activities.RecordWorkflowDuration)

	submitCalls := 0
	env.OnActivity(activities.SubmitTransfer, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { submitCalls++ }).
		Return(nil, errors.New("network unavailable"))
	env.OnActivity(activities.PublishSubmission, mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(SubmitTransferWorkflow, SubmitTransferInput{})

	require.True(t, env.IsWorkflowCompleted())
	assert.NoError(t, env.GetWorkflowError())
	assert.Equal(t, 1, submitCalls, "submit activity must run exactly once")
}

func TestSubmitTransferWorkflow_PublishesResult(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	activities := &Activities{}
	env.RegisterActivity(activities.SubmitTransfer)
	env.RegisterActivity(activities.PublishSubmission)
	env.RegisterActivity(activities.RecordWorkflowDuration)

	started := time.Date(2024, 3, 1, 17, 30, 0, 0, time.UTC)
	env.SetStartTime(started)

	var activityInput SubmitTransferActivityInput
	env.OnActivity(activities.SubmitTransfer, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			activityInput = args.Get(1).(SubmitTransferActivityInput)
		}).
		Return(&SubmitTransferResult{Signature: stringPtr("sig4"), Confirmed: true, Outcome: "confirmed", Status: StatusConfirmed}, nil)

	var published PublishSubmissionInput
	env.OnActivity(activities.PublishSubmission, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			published = args.Get(1).(PublishSubmissionInput)
		}).
		Return(nil)

	env.ExecuteWorkflow(SubmitTransferWorkflow, SubmitTransferInput{Note: "hello"})
	require.NoError(t, env.GetWorkflowError())

	assert.Equal(t, "hello", activityInput.Note)
	assert.True(t, activityInput.StartedAt.Equal(started))

	require.NotNil(t, published.Result.Signature)
	assert.Equal(t, "sig4", *published.Result.Signature)
	assert.NotEmpty(t, published.Result.WorkflowID)
}

func TestSubmitTransferWorkflow_RecordsDurationOnce(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	activities := &Activities{}
	env.RegisterActivity(activities.SubmitTransfer)
	env.RegisterActivity(activities.PublishSubmission)
	env.RegisterActivity(activities.RecordWorkflowDuration)

	env.OnActivity(activities.SubmitTransfer, mock.Anything, mock.Anything).
		Return(&SubmitTransferResult{Signature: stringPtr("sig5"), Confirmed: true, Outcome: "confirmed", Status: StatusConfirmed}, nil)

	publishCalls := 0
	env.OnActivity(activities.PublishSubmission, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { publishCalls++ }).
		Return(errors.New("nats unavailable"))

	var recorded []RecordWorkflowDurationInput
	env.OnActivity(activities.RecordWorkflowDuration, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			recorded = append(recorded, args.Get(1).(RecordWorkflowDurationInput))
		}).
		Return(nil)

	env.ExecuteWorkflow(SubmitTransferWorkflow, SubmitTransferInput{})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	assert.Equal(t, 3, publishCalls, "publish is retried")
	require.Len(t, recorded, 1, "duration is recorded once per run")
	assert.Equal(t, StatusConfirmed, recorded[0].Status)
	assert.GreaterOrEqual(t, recorded[0].Duration, time.Duration(0))
}
