package main

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/myrjola/surveycall/internal/ai"
	"github.com/myrjola/surveycall/internal/call"
	"github.com/myrjola/surveycall/internal/contexthelpers"
	"github.com/myrjola/surveycall/internal/errors"
	"github.com/myrjola/surveycall/internal/logging"
	"github.com/myrjola/surveycall/internal/repositories"
	"github.com/myrjola/surveycall/internal/survey"
	"github.com/myrjola/surveycall/internal/tools"
	"github.com/sashabaranov/go-openai"
)

type callerRequest struct {
	Number string `json:"number"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

type startCallRequest struct {
	SurveyID  string        `json:"survey_id"`
	Caller    callerRequest `json:"caller"`
	SurveyURL string        `json:"survey_url"`
}

type startCallResponse struct {
	CallID       string        `json:"call_id"`
	SystemPrompt string        `json:"system_prompt"`
	Tools        []openai.Tool `json:"tools"`
}

// startCall sets up the session of a call that has just been connected and hands the agent its instructions.
func (app *application) startCall(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req startCallRequest
	if err := readJSON(r, &req); err != nil {
		app.clientErrorMessage(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req.SurveyID = strings.TrimSpace(req.SurveyID)
	req.Caller.Number = strings.TrimSpace(req.Caller.Number)
	if req.SurveyID == "" || req.Caller.Number == "" {
		app.clientErrorMessage(w, r, http.StatusBadRequest, "survey_id and caller.number are required")
		return
	}

	s, err := app.surveys.Get(ctx, req.SurveyID)
	if errors.Is(err, repositories.ErrNotFound) {
		app.clientErrorMessage(w, r, http.StatusNotFound, "unknown survey")
		return
	}
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	caller := call.Caller{Number: req.Caller.Number, Name: strings.TrimSpace(req.Caller.Name),
		Email: strings.TrimSpace(req.Caller.Email)}
	prompt, err := ai.BuildSystemPrompt(s, caller, app.prompt)
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	c, err := app.newCall(r, s, caller, req.SurveyURL)
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	app.writeJSON(w, r, http.StatusCreated, startCallResponse{
		CallID:       c.ID(),
		SystemPrompt: prompt,
		Tools:        tools.Definitions(),
	})
}

func (app *application) newCall(r *http.Request, s *survey.Survey, caller call.Caller, surveyURL string) (*call.Call, error) {
	id := uuid.NewString()
	ctx := logging.WithAttrs(r.Context(),
		slog.String("call_id", id), slog.String("survey_id", s.ID), slog.String("caller", caller.Number))

	callLog, err := logging.OpenCallLog(app.cfg.LogDir, id, caller.Number, app.logger)
	if err != nil {
		return nil, errors.Wrap(err, "open call log")
	}
	startedAt := time.Now()
	session := call.NewSession(id, caller, s, surveyURL, startedAt, nil)
	c := call.New(session, call.Deps{
		Store:    app.callStore,
		Notifier: app.voice,
		Phone:    app.telephony.Line(id),
		Logger:   callLog.Logger,
		Log:      callLog,
		Now:      nil,
	}, app.callConfig)
	if err = app.calls.Add(c); err != nil {
		if discardErr := c.Discard(); discardErr != nil {
			c.Logger().LogAttrs(ctx, slog.LevelWarn, "discard unregistered call", errors.SlogError(discardErr))
		}
		return nil, errors.Wrap(err, "register call")
	}
	app.metrics.CallStarted()
	go func() {
		<-c.Done()
		if result, ok := c.Result(); ok {
			app.metrics.CallEnded(result.Reason.String(), result.Record.DurationSeconds)
		}
	}()
	c.Logger().LogAttrs(ctx, slog.LevelInfo, "call started",
		slog.Int("questions", s.Len()), slog.Time("started_at", startedAt))
	return c, nil
}

type questionResponse struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type progressResponse struct {
	CallID       string             `json:"call_id"`
	SurveyID     string             `json:"survey_id"`
	Answered     int                `json:"answered"`
	Total        int                `json:"total"`
	AllDone      bool               `json:"all_done"`
	Next         *questionResponse  `json:"next,omitempty"`
	Remaining    []questionResponse `json:"remaining"`
	Transcript   []survey.Answer    `json:"transcript"`
	Finalized    bool               `json:"finalized"`
	EndReason    string             `json:"end_reason,omitempty"`
	CallbackTime string             `json:"callback_time,omitempty"`
}

func (app *application) callProgress(w http.ResponseWriter, r *http.Request) {
	c := contexthelpers.LiveCall(r.Context())
	p := c.Session().Progress()

	resp := progressResponse{
		CallID:       c.ID(),
		SurveyID:     c.Session().Survey.ID,
		Answered:     p.Answered,
		Total:        p.Total,
		AllDone:      p.AllDone,
		Next:         nil,
		Remaining:    make([]questionResponse, 0, len(p.Remaining)),
		Transcript:   p.Transcript,
		Finalized:    p.Finalized,
		EndReason:    p.EndReason.String(),
		CallbackTime: p.CallbackTime,
	}
	if !p.AllDone {
		resp.Next = &questionResponse{ID: p.Next.ID, Text: p.Next.Text}
	}
	for _, q := range p.Remaining {
		resp.Remaining = append(resp.Remaining, questionResponse{ID: q.ID, Text: q.Text})
	}
	app.writeJSON(w, r, http.StatusOK, resp)
}
