package main

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/myrjola/surveycall/internal/e2etest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rideFeedbackCall() e2etest.StartCallRequest {
	return e2etest.StartCallRequest{
		SurveyID:  "ride-feedback",
		Caller:    e2etest.Caller{Number: "+15550100", Name: "Alex", Email: "alex@example.com"},
		SurveyURL: "https://surveys.example.com/ride-feedback",
	}
}

func TestHealthy(t *testing.T) {
	server := startTestServer(t, newCollaborators(t), nil)
	require.NoError(t, server.Client().Healthy(context.Background()))
}

func TestCallFlow(t *testing.T) {
	ctx := context.Background()
	fakes := newCollaborators(t)
	client := startTestServer(t, fakes, nil).Client()

	started, err := client.StartCall(ctx, rideFeedbackCall())
	require.NoError(t, err)
	require.NotEmpty(t, started.CallID)
	require.Contains(t, started.SystemPrompt, "How was your ride?")
	require.Contains(t, started.SystemPrompt, "speaking with Alex")
	require.Len(t, started.Tools, 4)
	callID := started.CallID

	tool := func(name, arguments string) string {
		t.Helper()
		result, toolErr := client.Tool(ctx, callID, name, arguments)
		require.NoError(t, toolErr)
		return result
	}

	require.Contains(t, tool("end_survey", `{"reason":"completed"}`), `Cannot end as "completed" yet`)
	require.Equal(t,
		`RECORDED (1/3). 1 question left. NEXT QUESTION: "Was the driver on time?" (question_id: q2). Ask it now.`,
		tool("record_answer", `{"question_id":"q1","answer":"5"}`))
	require.Equal(t, `RECORDED (2/3). ALL DONE. Call end_survey("completed") now.`,
		tool("record_answer", `{"question_id":"q2","answer":"yes, right on time"}`))

	progress, err := client.Progress(ctx, callID)
	require.NoError(t, err)
	require.True(t, progress.AllDone)
	require.False(t, progress.Finalized)
	require.Nil(t, progress.Next)
	require.Empty(t, progress.Remaining)
	require.Len(t, progress.Transcript, 2)

	require.Equal(t, "Call ended.", tool("end_survey", `{"reason":"completed"}`))
	require.Equal(t, "The call has already ended. Do not say anything else.", tool("end_survey", `{"reason":"declined"}`))

	progress, err = client.Progress(ctx, callID)
	require.NoError(t, err)
	require.True(t, progress.Finalized)
	require.Equal(t, "completed", progress.EndReason)

	records, err := client.RecipientCalls(ctx, "+15550100")
	require.NoError(t, err)
	require.Len(t, records, 1)
	record := records[0]
	assert.Equal(t, callID, record.CallID)
	assert.True(t, record.Completed)
	assert.Equal(t, "completed", record.EndReason)
	require.Len(t, record.Transcript, 2)
	assert.Equal(t, "q2", record.Transcript[1].QuestionID)

	assert.Equal(t, 1, fakes.count("/say"))
	assert.Equal(t, 1, fakes.count("/hangup"))
	require.Eventually(t, func() bool {
		return fakes.count("/api/voice/record-answer") == 2 &&
			fakes.count("/api/voice/complete-survey") == 1 &&
			fakes.count("/api/voice/store-transcript") == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestCallbackFlow(t *testing.T) {
	ctx := context.Background()
	fakes := newCollaborators(t)
	client := startTestServer(t, fakes, nil).Client()

	started, err := client.StartCall(ctx, rideFeedbackCall())
	require.NoError(t, err)

	result, err := client.Tool(ctx, started.CallID, "schedule_callback", `{"preferred_time":"in 2 hours"}`)
	require.NoError(t, err)
	require.Contains(t, result, "Callback scheduled")
	assert.Equal(t, 1, fakes.count("/scheduler/schedule-call"))

	result, err = client.Tool(ctx, started.CallID, "send_survey_link", "")
	require.NoError(t, err)
	require.Contains(t, result, "Survey link sent")
	assert.Equal(t, 1, fakes.count("/api/voice/send-email-fallback"))

	result, err = client.Tool(ctx, started.CallID, "end_survey", `{"reason":"callback_scheduled"}`)
	require.NoError(t, err)
	require.Equal(t, "Call ended.", result)

	records, err := client.RecipientCalls(ctx, "+15550100")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].Completed)
	assert.Equal(t, "callback_scheduled", records[0].EndReason)
	assert.Equal(t, "in 2 hours", records[0].CallbackTime)
}

func TestStartCall_errors(t *testing.T) {
	client := startTestServer(t, newCollaborators(t), nil).Client()

	unknownSurvey := rideFeedbackCall()
	unknownSurvey.SurveyID = "missing"
	missingNumber := rideFeedbackCall()
	missingNumber.Caller = e2etest.Caller{Number: " ", Name: "Alex", Email: ""}

	tests := []struct {
		name string
		body any
		want int
	}{
		{name: "unknown survey", body: unknownSurvey, want: http.StatusNotFound},
		{name: "missing number", body: missingNumber, want: http.StatusBadRequest},
		{name: "malformed", body: "{", want: http.StatusBadRequest},
		{name: "unknown field", body: `{"survey_id":"ride-feedback","bogus":1}`, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp map[string]string
			status, err := client.Do(context.Background(), http.MethodPost, "/api/calls", tt.body, &resp)
			require.NoError(t, err)
			require.Equal(t, tt.want, status)
			require.NotEmpty(t, resp["error"])
		})
	}
}

func TestToolWebhook_access(t *testing.T) {
	ctx := context.Background()
	server := startTestServer(t, newCollaborators(t), map[string]string{"SURVEYCALL_TOOL_SECRET": "s3cret"})
	started, err := server.Client().StartCall(ctx, rideFeedbackCall())
	require.NoError(t, err)
	path := "/api/calls/" + started.CallID + "/tools/record_answer"

	tests := []struct {
		name   string
		client *e2etest.Client
		path   string
		want   int
	}{
		{name: "missing secret", client: e2etest.NewClient(server.URL(), ""), path: path, want: http.StatusUnauthorized},
		{name: "wrong secret", client: e2etest.NewClient(server.URL(), "nope"), path: path, want: http.StatusUnauthorized},
		{name: "unknown call", client: server.Client(), path: "/api/calls/nope/tools/record_answer",
			want: http.StatusNotFound},
		{name: "valid", client: server.Client(), path: path, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, doErr := tt.client.Do(ctx, http.MethodPost, tt.path, `{"question_id":"q1","answer":"4"}`, nil)
			require.NoError(t, doErr)
			require.Equal(t, tt.want, status)
		})
	}

	result, err := server.Client().Tool(ctx, started.CallID, "dance", "{}")
	require.NoError(t, err)
	require.Contains(t, result, "Unknown tool")
}
