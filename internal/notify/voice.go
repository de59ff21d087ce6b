package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/myrjola/surveycall/internal/errors"
	"github.com/myrjola/surveycall/internal/models"
)

var ErrLinkUnavailable = errors.NewSentinel("survey link cannot be sent")

// VoiceService notifies the voice service about answers and finished calls, and asks it to email the survey link.
type VoiceService struct {
	baseURL    string
	httpClient *http.Client
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewVoiceService(baseURL string, timeout time.Duration, dispatcher *Dispatcher, logger *slog.Logger) *VoiceService {
	return &VoiceService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout}, //nolint:exhaustruct // defaults are fine
		dispatcher: dispatcher,
		logger:     logger.With(slog.String("source", "voice-service")),
	}
}

// AnswerRecorded queues the record-answer notification.
func (v *VoiceService) AnswerRecorded(ctx context.Context, surveyID string, entry models.TranscriptEntry) {
	if surveyID == "" {
		return
	}
	params := url.Values{}
	params.Set("survey_id", surveyID)
	params.Set("question_id", entry.QuestionID)
	params.Set("answer", entry.Answer)
	v.submit(ctx, "record-answer", params, slog.String("question_id", entry.QuestionID))
}

// CallEnded queues the status update and the transcript store for a finished call.
func (v *VoiceService) CallEnded(ctx context.Context, record models.CallRecord) {
	if record.SurveyID == "" {
		return
	}
	status := url.Values{}
	status.Set("survey_id", record.SurveyID)
	status.Set("reason", record.EndReason)
	v.submit(ctx, "complete-survey", status)

	transcript := url.Values{}
	transcript.Set("survey_id", record.SurveyID)
	transcript.Set("full_transcript", FormatTranscript(record.Transcript))
	transcript.Set("call_duration_seconds", strconv.Itoa(int(record.DurationSeconds)))
	transcript.Set("call_status", record.EndReason)
	v.submit(ctx, "store-transcript", transcript)
}

// SendSurveyLink asks the voice service to email the survey link and waits for the outcome.
func (v *VoiceService) SendSurveyLink(ctx context.Context, req models.LinkRequest) error {
	if req.SurveyID == "" || req.SurveyURL == "" || req.Email == "" {
		return errors.Wrap(ErrLinkUnavailable, "send survey link",
			slog.Bool("has_email", req.Email != ""), slog.Bool("has_url", req.SurveyURL != ""))
	}
	params := url.Values{}
	params.Set("survey_id", req.SurveyID)
	params.Set("email", req.Email)
	params.Set("survey_url", req.SurveyURL)
	return v.post(ctx, "send-email-fallback", params)
}

// FormatTranscript renders the transcript one answer per line as the voice service stores it.
func FormatTranscript(entries []models.TranscriptEntry) string {
	lines := make([]string, len(entries))
	for i, entry := range entries {
		lines[i] = fmt.Sprintf("Q[%s]: %s", entry.QuestionID, entry.Answer)
	}
	return strings.Join(lines, "\n")
}

func (v *VoiceService) submit(ctx context.Context, endpoint string, params url.Values, attrs ...slog.Attr) {
	attrs = append(attrs, slog.String("survey_id", params.Get("survey_id")))
	v.dispatcher.Submit(ctx, Job{
		Name:  endpoint,
		Attrs: attrs,
		Run: func(ctx context.Context) error {
			return v.post(ctx, endpoint, params)
		},
	})
}

func (v *VoiceService) post(ctx context.Context, endpoint string, params url.Values) error {
	target := fmt.Sprintf("%s/api/voice/%s?%s", v.baseURL, endpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, nil)
	if err != nil {
		return errors.Wrap(err, "create request", slog.String("endpoint", endpoint))
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "call voice service", slog.String("endpoint", endpoint))
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			v.logger.LogAttrs(ctx, slog.LevelWarn, "failed to close response body", errors.SlogError(err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024)) //nolint:mnd // enough for an error message
		return errors.New("voice service rejected request", slog.String("endpoint", endpoint),
			slog.Int("status", resp.StatusCode), slog.String("body", string(body)))
	}
	return nil
}
