package e2etest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/myrjola/surveycall/internal/errors"
	"github.com/myrjola/surveycall/internal/models"
)

var ErrUnexpectedStatus = errors.NewSentinel("unexpected status code")

// Client talks to the surveycall JSON API the way the agent platform and operators do.
type Client struct {
	client     *http.Client
	url        string
	toolSecret string
}

// NewClient creates an API client. toolSecret is sent as bearer token when set.
func NewClient(url, toolSecret string) *Client {
	return &Client{
		client:     &http.Client{Timeout: time.Minute}, //nolint:exhaustruct // end_survey waits for the farewell
		url:        strings.TrimRight(url, "/"),
		toolSecret: toolSecret,
	}
}

// WaitForReady calls the specified endpoint until it gets a HTTP 200 Success
// response or until the context is cancelled or the 1-second timeout is reached.
func (c *Client) WaitForReady(ctx context.Context, urlPath string) error {
	timeout := 1 * time.Second
	startTime := time.Now()
	var (
		err  error
		req  *http.Request
		resp *http.Response
	)
	for {
		if req, err = http.NewRequestWithContext(
			ctx,
			http.MethodGet,
			c.url+urlPath,
			nil,
		); err != nil {
			return errors.Wrap(err, "create request")
		}

		if resp, err = c.client.Do(req); err == nil {
			if resp.StatusCode == http.StatusOK {
				if err = resp.Body.Close(); err != nil {
					return errors.Wrap(err, "close response body")
				}
				return nil
			}
			if err = resp.Body.Close(); err != nil {
				return errors.Wrap(err, "close response body")
			}
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "context cancelled")
		default:
			if time.Since(startTime) >= timeout {
				return errors.New("timeout waiting for endpoint to be ready")
			}
			time.Sleep(100 * time.Millisecond) //nolint:mnd // 100ms
		}
	}
}

// Do sends body as JSON and decodes a JSON response into out when out is not nil. A string body is sent as is.
func (c *Client) Do(ctx context.Context, method, urlPath string, body, out any) (int, error) {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return 0, errors.Wrap(err, "encode request body")
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url+urlPath, reader)
	if err != nil {
		return 0, errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.toolSecret != "" {
		req.Header.Set("Authorization", "Bearer "+c.toolSecret)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, "do request", slog.String("path", urlPath))
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if contentType := resp.Header.Get("Content-Type"); contentType != "application/json" {
		return resp.StatusCode, errors.New("response is not JSON",
			slog.String("path", urlPath), slog.String("content_type", contentType))
	}
	if out != nil {
		if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, errors.Wrap(err, "decode response", slog.String("path", urlPath))
		}
	}
	return resp.StatusCode, nil
}

func (c *Client) expect(ctx context.Context, want int, method, urlPath string, body, out any) error {
	status, err := c.Do(ctx, method, urlPath, body, out)
	if err != nil {
		return err
	}
	if status != want {
		return errors.Wrap(ErrUnexpectedStatus, method+" "+urlPath, slog.Int("status", status), slog.Int("want", want))
	}
	return nil
}

type Caller struct {
	Number string `json:"number"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
}

type StartCallRequest struct {
	SurveyID  string `json:"survey_id"`
	Caller    Caller `json:"caller"`
	SurveyURL string `json:"survey_url,omitempty"`
}

type StartCallResponse struct {
	CallID       string            `json:"call_id"`
	SystemPrompt string            `json:"system_prompt"`
	Tools        []json.RawMessage `json:"tools"`
}

type Question struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type Answer struct {
	QuestionID string    `json:"question_id"`
	Answer     string    `json:"answer"`
	Timestamp  time.Time `json:"timestamp"`
}

type Progress struct {
	CallID       string     `json:"call_id"`
	SurveyID     string     `json:"survey_id"`
	Answered     int        `json:"answered"`
	Total        int        `json:"total"`
	AllDone      bool       `json:"all_done"`
	Next         *Question  `json:"next"`
	Remaining    []Question `json:"remaining"`
	Transcript   []Answer   `json:"transcript"`
	Finalized    bool       `json:"finalized"`
	EndReason    string     `json:"end_reason"`
	CallbackTime string     `json:"callback_time"`
}

func (c *Client) Healthy(ctx context.Context) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.expect(ctx, http.StatusOK, http.MethodGet, "/api/healthy", nil, &resp); err != nil {
		return err
	}
	if resp.Status != "ok" {
		return errors.New("server is not healthy", slog.String("status", resp.Status))
	}
	return nil
}

func (c *Client) StartCall(ctx context.Context, req StartCallRequest) (StartCallResponse, error) {
	var resp StartCallResponse
	err := c.expect(ctx, http.StatusCreated, http.MethodPost, "/api/calls", req, &resp)
	return resp, err
}

// Tool invokes a tool with JSON encoded arguments and returns the directive.
func (c *Client) Tool(ctx context.Context, callID, tool, arguments string) (string, error) {
	var resp struct {
		Result string `json:"result"`
	}
	urlPath := "/api/calls/" + url.PathEscape(callID) + "/tools/" + url.PathEscape(tool)
	err := c.expect(ctx, http.StatusOK, http.MethodPost, urlPath, arguments, &resp)
	return resp.Result, err
}

func (c *Client) Progress(ctx context.Context, callID string) (Progress, error) {
	var resp Progress
	err := c.expect(ctx, http.StatusOK, http.MethodGet, "/api/calls/"+url.PathEscape(callID), nil, &resp)
	return resp, err
}

func (c *Client) RecipientCalls(ctx context.Context, phone string) ([]models.CallRecord, error) {
	var resp struct {
		Calls []models.CallRecord `json:"calls"`
	}
	err := c.expect(ctx, http.StatusOK, http.MethodGet, "/api/recipients/"+url.PathEscape(phone)+"/calls", nil, &resp)
	return resp.Calls, err
}
