// Package tools exposes a call to the conversational agent as four tools. Every tool answers with a directive that
// names the next question, says ALL DONE, or names what is blocking.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/myrjola/surveycall/internal/call"
	"github.com/myrjola/surveycall/internal/errors"
	"github.com/myrjola/surveycall/internal/models"
	"github.com/myrjola/surveycall/internal/scheduler"
	"github.com/myrjola/surveycall/internal/survey"
)

// Scheduler queues a new call attempt.
type Scheduler interface {
	ScheduleCall(ctx context.Context, surveyID, phone string, delay time.Duration) error
}

// LinkSender delivers the survey link so that the recipient can answer later.
type LinkSender interface {
	SendSurveyLink(ctx context.Context, req models.LinkRequest) error
}

const callEnded = "The call has already ended. Do not say anything else."

// Toolbox serves the tool calls of one call.
type Toolbox struct {
	call      *call.Call
	scheduler Scheduler
	links     LinkSender
	logger    *slog.Logger
}

func New(c *call.Call, s Scheduler, links LinkSender) *Toolbox {
	return &Toolbox{
		call:      c,
		scheduler: s,
		links:     links,
		logger:    c.Logger().With(slog.String("source", "tools")),
	}
}

// RecordAnswer stores the caller's answer and tells the agent what to ask next.
func (t *Toolbox) RecordAnswer(ctx context.Context, questionID, answer string) string {
	questionID = strings.TrimSpace(questionID)
	if strings.TrimSpace(answer) == "" {
		if q, ok := t.call.Session().Survey.Question(questionID); ok {
			return fmt.Sprintf("The answer for %s is empty. Ask %s again.", questionID, ask(q))
		}
	}
	result, err := t.call.RecordAnswer(ctx, questionID, answer)
	switch {
	case errors.Is(err, call.ErrAlreadyFinalized):
		return callEnded
	case errors.Is(err, survey.ErrUnknownQuestion):
		return fmt.Sprintf("Unknown question_id %q, nothing was recorded. %s", questionID, nextDirective(result.Progress))
	case err != nil:
		t.logger.LogAttrs(ctx, slog.LevelError, "record answer failed", errors.SlogError(err))
		return "Could not record the answer. " + nextDirective(result.Progress)
	}

	p := result.Progress
	if result.Outcome == survey.AlreadyRecorded {
		if p.AllDone {
			return `All questions are already answered. Call end_survey("completed") now.`
		}
		return fmt.Sprintf("Already recorded %s. Move on and ask this next: %s.", questionID, ask(p.Next))
	}
	if p.AllDone {
		return fmt.Sprintf(`RECORDED (%d/%d). ALL DONE. Call end_survey("completed") now.`, p.Answered, p.Total)
	}
	return fmt.Sprintf("RECORDED (%d/%d). %s left. NEXT QUESTION: %s. Ask it now.",
		p.Answered, p.Total, plural(len(p.Remaining), "question"), ask(p.Next))
}

// EndSurvey ends the call for reason. Ending as completed is refused while eligible questions remain.
func (t *Toolbox) EndSurvey(ctx context.Context, reason string) string {
	endReason, err := call.ParseEndReason(reason)
	if err != nil {
		return fmt.Sprintf("Unknown reason %q. Use one of: %s.", reason, reasonList())
	}
	_, err = t.call.End(ctx, endReason)
	var incomplete *call.IncompleteError
	switch {
	case err == nil:
		return "Call ended."
	case errors.As(err, &incomplete):
		ids := make([]string, len(incomplete.Remaining))
		for i, q := range incomplete.Remaining {
			ids[i] = q.ID
		}
		t.logger.LogAttrs(ctx, slog.LevelWarn, "premature completion refused",
			slog.String("remaining", strings.Join(ids, ",")))
		return fmt.Sprintf(`Cannot end as "completed" yet: %s still unanswered: %s. `+
			"You MUST ask these before ending. Next to ask: %s.",
			plural(len(ids), "required question"), strings.Join(ids, ", "), ask(incomplete.Next))
	case errors.Is(err, call.ErrAlreadyFinalized):
		return callEnded
	default:
		t.logger.LogAttrs(ctx, slog.LevelError, "end survey failed", errors.SlogError(err))
		return "Could not end the call. Try end_survey again."
	}
}

// ScheduleCallback records the preferred time and asks the scheduler to call again. It does not end the call.
func (t *Toolbox) ScheduleCallback(ctx context.Context, preferredTime string) string {
	if err := t.call.RequestCallback(ctx, preferredTime); err != nil {
		return callEnded
	}
	s := t.call.Session()
	delay := scheduler.ParseDelay(preferredTime)
	if err := t.scheduler.ScheduleCall(ctx, s.Survey.ID, s.Caller.Number, delay); err != nil {
		t.logger.LogAttrs(ctx, slog.LevelWarn, "failed to schedule callback",
			slog.Duration("delay", delay), errors.SlogError(err))
	}
	return `Callback scheduled. Now call end_survey("callback_scheduled") to end the call.`
}

// SendSurveyLink sends the survey link to the caller's email. It does not end the call.
func (t *Toolbox) SendSurveyLink(ctx context.Context) string {
	s := t.call.Session()
	if s.Progress().Finalized {
		return callEnded
	}
	err := t.links.SendSurveyLink(ctx, models.LinkRequest{
		CallID:    s.ID,
		SurveyID:  s.Survey.ID,
		SurveyURL: s.SurveyURL,
		Email:     s.Caller.Email,
		Name:      s.Caller.Name,
	})
	if err != nil {
		t.logger.LogAttrs(ctx, slog.LevelWarn, "failed to send survey link", errors.SlogError(err))
		return `Could not send the link (no email on file or delivery failed). ` +
			`Apologize, then call end_survey("link_sent") to end the call.`
	}
	t.logger.LogAttrs(ctx, slog.LevelInfo, "survey link sent")
	return `Survey link sent. Now call end_survey("link_sent") to end the call.`
}

func nextDirective(p call.Progress) string {
	if p.Finalized {
		return callEnded
	}
	if p.AllDone {
		return `ALL DONE. Call end_survey("completed") now.`
	}
	return fmt.Sprintf("NEXT QUESTION: %s. Ask it now.", ask(p.Next))
}

func ask(q survey.Question) string {
	return fmt.Sprintf("%q (question_id: %s)", q.Text, q.ID)
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func reasonList() string {
	reasons := call.EndReasons()
	names := make([]string, len(reasons))
	for i, r := range reasons {
		names[i] = r.String()
	}
	return strings.Join(names, ", ")
}
