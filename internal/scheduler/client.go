package scheduler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/myrjola/surveycall/internal/errors"
)

// Client talks to the scheduling service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a scheduler client. Every request is bounded by timeout.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout}, //nolint:exhaustruct // defaults are fine
		logger:     logger.With(slog.String("source", "scheduler")),
	}
}

// ScheduleCall asks for surveyID to be called again on phone after delay.
func (c *Client) ScheduleCall(ctx context.Context, surveyID, phone string, delay time.Duration) error {
	query := url.Values{}
	query.Set("survey_id", surveyID)
	query.Set("phone", phone)
	query.Set("delay_seconds", strconv.Itoa(int(delay.Seconds())))
	endpoint := c.baseURL + "/scheduler/schedule-call?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "schedule call", slog.String("survey_id", surveyID))
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			c.logger.LogAttrs(ctx, slog.LevelWarn, "failed to close response body", errors.SlogError(err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024)) //nolint:mnd // enough for an error message
		return errors.New("schedule call rejected",
			slog.Int("status", resp.StatusCode), slog.String("body", string(body)),
			slog.String("survey_id", surveyID))
	}
	c.logger.LogAttrs(ctx, slog.LevelInfo, "callback scheduled",
		slog.String("survey_id", surveyID), slog.Duration("delay", delay))
	return nil
}
