package tools_test

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/myrjola/surveycall/internal/call"
	"github.com/myrjola/surveycall/internal/errors"
	"github.com/myrjola/surveycall/internal/models"
	"github.com/myrjola/surveycall/internal/survey"
	"github.com/myrjola/surveycall/internal/testhelpers"
	"github.com/myrjola/surveycall/internal/tools"
	"github.com/stretchr/testify/require"
)

type fakeScheduler struct {
	mu     sync.Mutex
	delays []time.Duration
	err    error
}

func (s *fakeScheduler) ScheduleCall(_ context.Context, _, _ string, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, delay)
	return s.err
}

type fakeLinks struct {
	requests []models.LinkRequest
	err      error
}

func (l *fakeLinks) SendSurveyLink(_ context.Context, req models.LinkRequest) error {
	l.requests = append(l.requests, req)
	return l.err
}

type fixture struct {
	toolbox   *tools.Toolbox
	call      *call.Call
	store     *testhelpers.RecordingStore
	phone     *testhelpers.FakePhone
	scheduler *fakeScheduler
	links     *fakeLinks
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	s, err := survey.New("ride", "Ride feedback", []survey.Question{
		{ID: "q1", Text: "How was your ride from 1 to 5?", Kind: survey.KindScale, ScaleMax: 5},
		{ID: "q2", Text: "Was the driver on time?", Kind: survey.KindCategorical, Categories: []string{"Yes", "No"}},
		{ID: "q3", Text: "What went wrong?", Kind: survey.KindOpen, ParentID: "q2", TriggerCategories: []string{"No"}},
	})
	require.NoError(t, err)
	f := fixture{
		store:     &testhelpers.RecordingStore{},
		phone:     &testhelpers.FakePhone{},
		scheduler: &fakeScheduler{},
		links:     &fakeLinks{},
	}
	cfg := call.DefaultConfig()
	cfg.FarewellBuffer = 0
	cfg.AutoEndGrace = time.Hour
	cfg.MaxDuration = 0
	session := call.NewSession("call-1", call.Caller{Number: "+15550100", Email: "alex@example.com"}, s,
		"https://example.com/s/ride", time.Now(), nil)
	f.call = call.New(session, call.Deps{
		Store:    f.store,
		Notifier: &testhelpers.RecordingNotifier{},
		Phone:    f.phone,
		Logger:   testhelpers.NewLogger(io.Discard),
	}, cfg)
	f.toolbox = tools.New(f.call, f.scheduler, f.links)
	return f
}

func TestToolbox_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.Equal(t,
		`RECORDED (1/3). 1 question left. NEXT QUESTION: "Was the driver on time?" (question_id: q2). Ask it now.`,
		f.toolbox.RecordAnswer(ctx, "q1", "4"))
	require.Equal(t,
		`RECORDED (2/3). 1 question left. NEXT QUESTION: "What went wrong?" (question_id: q3). Ask it now.`,
		f.toolbox.RecordAnswer(ctx, "q2", "No"))
	require.Equal(t,
		`RECORDED (3/3). ALL DONE. Call end_survey("completed") now.`,
		f.toolbox.RecordAnswer(ctx, "q3", "late pickup"))
	require.Equal(t, "Call ended.", f.toolbox.EndSurvey(ctx, "completed"))

	records := f.store.Records()
	require.Len(t, records, 1)
	require.True(t, records[0].Completed)
	require.Len(t, records[0].Transcript, 3)
}

func TestToolbox_SkipScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.Contains(t, f.toolbox.RecordAnswer(ctx, "q2", "Yes"), "(question_id: q1)")
	require.Equal(t, `RECORDED (2/3). ALL DONE. Call end_survey("completed") now.`,
		f.toolbox.RecordAnswer(ctx, "q1", "5"))
	require.Equal(t, "Call ended.", f.toolbox.EndSurvey(ctx, "completed"))
	require.Len(t, f.store.Records()[0].Transcript, 2)
}

func TestToolbox_EndSurvey(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(ctx context.Context, f fixture)
		reason string
		want   string
	}{
		{
			name:   "premature completion",
			setup:  func(ctx context.Context, f fixture) { f.toolbox.RecordAnswer(ctx, "q1", "4") },
			reason: "completed",
			want: `Cannot end as "completed" yet: 1 required question still unanswered: q2. ` +
				`You MUST ask these before ending. Next to ask: "Was the driver on time?" (question_id: q2).`,
		},
		{
			name:   "nothing answered",
			setup:  func(context.Context, fixture) {},
			reason: "completed",
			want: `Cannot end as "completed" yet: 2 required questions still unanswered: q1, q2. ` +
				`You MUST ask these before ending. Next to ask: "How was your ride from 1 to 5?" (question_id: q1).`,
		},
		{
			name:   "unknown reason",
			setup:  func(context.Context, fixture) {},
			reason: "bored",
			want: `Unknown reason "bored". Use one of: completed, wrong_person, declined, not_available, ` +
				`callback_scheduled, link_sent, time_limit.`,
		},
		{
			name:   "declined",
			setup:  func(context.Context, fixture) {},
			reason: "declined",
			want:   "Call ended.",
		},
		{
			name: "already ended",
			setup: func(ctx context.Context, f fixture) {
				f.toolbox.EndSurvey(ctx, "wrong_person")
			},
			reason: "declined",
			want:   "The call has already ended. Do not say anything else.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			tt.setup(ctx, f)
			require.Equal(t, tt.want, f.toolbox.EndSurvey(ctx, tt.reason))
		})
	}
}

func TestToolbox_RecordAnswer_Invalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.Equal(t,
		`Unknown question_id "q9", nothing was recorded. NEXT QUESTION: "How was your ride from 1 to 5?" `+
			`(question_id: q1). Ask it now.`,
		f.toolbox.RecordAnswer(ctx, "q9", "yes"))
	require.Equal(t, `The answer for q1 is empty. Ask "How was your ride from 1 to 5?" (question_id: q1) again.`,
		f.toolbox.RecordAnswer(ctx, "q1", "  "))

	f.toolbox.RecordAnswer(ctx, "q1", "4")
	require.Equal(t, `Already recorded q1. Move on and ask this next: "Was the driver on time?" (question_id: q2).`,
		f.toolbox.RecordAnswer(ctx, "q1", "2"))
	f.toolbox.RecordAnswer(ctx, "q2", "Yes")
	require.Equal(t, `All questions are already answered. Call end_survey("completed") now.`,
		f.toolbox.RecordAnswer(ctx, "q2", "No"))
	reply := f.toolbox.RecordAnswer(ctx, "q3", "anything")
	require.Contains(t, reply, "RECORDED (3/3). ALL DONE", "an excluded branch can still be recorded explicitly")
}

func TestToolbox_ScheduleCallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	want := `Callback scheduled. Now call end_survey("callback_scheduled") to end the call.`

	require.Equal(t, want, f.toolbox.ScheduleCallback(ctx, "in 2 hours"))
	f.scheduler.err = errors.NewSentinel("scheduler down")
	require.Equal(t, want, f.toolbox.ScheduleCallback(ctx, "tomorrow"))
	require.Equal(t, []time.Duration{2 * time.Hour, 24 * time.Hour}, f.scheduler.delays)
	_, ended := f.call.Result()
	require.False(t, ended, "scheduling a callback does not end the call")

	require.Equal(t, "Call ended.", f.toolbox.EndSurvey(ctx, "callback_scheduled"))
	require.Equal(t, "tomorrow", f.store.Records()[0].CallbackTime)
	require.Equal(t, "The call has already ended. Do not say anything else.",
		f.toolbox.ScheduleCallback(ctx, "later"))
}

func TestToolbox_SendSurveyLink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.Equal(t, `Survey link sent. Now call end_survey("link_sent") to end the call.`,
		f.toolbox.SendSurveyLink(ctx))
	require.Equal(t, models.LinkRequest{
		CallID:    "call-1",
		SurveyID:  "ride",
		SurveyURL: "https://example.com/s/ride",
		Email:     "alex@example.com",
		Name:      "",
	}, f.links.requests[0])

	f.links.err = errors.NewSentinel("no email")
	require.Contains(t, f.toolbox.SendSurveyLink(ctx), "Could not send the link")
	_, ended := f.call.Result()
	require.False(t, ended)
}

func TestToolbox_Invoke(t *testing.T) {
	tests := []struct {
		name      string
		tool      string
		arguments string
		want      string
	}{
		{
			name:      "record answer",
			tool:      tools.RecordAnswerName,
			arguments: `{"question_id":"q1","answer":"4"}`,
			want:      `RECORDED (1/3). 1 question left. NEXT QUESTION: "Was the driver on time?" (question_id: q2). Ask it now.`,
		},
		{
			name:      "malformed arguments",
			tool:      tools.RecordAnswerName,
			arguments: `{"question_id":`,
			want:      `Invalid arguments for record_answer. Call it again with arguments like {"question_id": "...", "answer": "..."}.`,
		},
		{
			name:      "end survey defaults to completed",
			tool:      tools.EndSurveyName,
			arguments: "",
			want: `Cannot end as "completed" yet: 2 required questions still unanswered: q1, q2. ` +
				`You MUST ask these before ending. Next to ask: "How was your ride from 1 to 5?" (question_id: q1).`,
		},
		{
			name:      "schedule callback",
			tool:      tools.ScheduleCallbackName,
			arguments: `{"preferred_time":"in 10 minutes"}`,
			want:      `Callback scheduled. Now call end_survey("callback_scheduled") to end the call.`,
		},
		{
			name:      "send survey link",
			tool:      tools.SendSurveyLinkName,
			arguments: "{}",
			want:      `Survey link sent. Now call end_survey("link_sent") to end the call.`,
		},
		{
			name:      "unknown tool",
			tool:      "transfer_call",
			arguments: "{}",
			want: `Unknown tool "transfer_call". Available tools: record_answer, end_survey, schedule_callback, ` +
				`send_survey_link.`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			require.Equal(t, tt.want, f.toolbox.Invoke(context.Background(), tt.tool, tt.arguments))
		})
	}
}

func TestDefinitions(t *testing.T) {
	definitions := tools.Definitions()
	names := make([]string, len(definitions))
	for i, d := range definitions {
		names[i] = d.Function.Name
	}
	require.Equal(t, []string{"record_answer", "end_survey", "schedule_callback", "send_survey_link"}, names)

	encoded, err := json.Marshal(definitions[1])
	require.NoError(t, err)
	require.Contains(t, string(encoded), `"enum":["completed","wrong_person"`)
}
