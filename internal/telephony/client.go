// Package telephony drives the audio side of a call through the media bridge HTTP API.
package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/myrjola/surveycall/internal/call"
	"github.com/myrjola/surveycall/internal/errors"
)

var ErrPlayoutFailed = errors.NewSentinel("playout failed")

const (
	statusPlayed = "played"
	statusFailed = "failed"
)

type Client struct {
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
	logger       *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: timeout}, //nolint:exhaustruct // defaults are fine
		pollInterval: 250 * time.Millisecond,         //nolint:mnd // responsive without hammering the bridge
		logger:       logger.With(slog.String("source", "telephony")),
	}
}

// Line returns the phone line of the call with callID.
func (c *Client) Line(callID string) *Line {
	return &Line{client: c, callID: callID}
}

// Line implements [call.Phone] for one call.
type Line struct {
	client *Client
	callID string
}

type sayRequest struct {
	Text string `json:"text"`
}

type sayResponse struct {
	UtteranceID string `json:"utterance_id"`
}

type utteranceStatus struct {
	Status string `json:"status"`
}

func (l *Line) Speak(ctx context.Context, text string) (call.Playout, error) {
	body, err := json.Marshal(sayRequest{Text: text})
	if err != nil {
		return nil, errors.Wrap(err, "marshal say request")
	}
	var resp sayResponse
	if err = l.client.do(ctx, http.MethodPost, l.path("say"), body, &resp); err != nil {
		return nil, errors.Wrap(err, "say", slog.String("call_id", l.callID))
	}
	return &playout{line: l, utteranceID: resp.UtteranceID}, nil
}

func (l *Line) Disconnect(ctx context.Context) error {
	if err := l.client.do(ctx, http.MethodPost, l.path("hangup"), nil, nil); err != nil {
		return errors.Wrap(err, "hangup", slog.String("call_id", l.callID))
	}
	return nil
}

func (l *Line) path(elem ...string) string {
	return "/calls/" + url.PathEscape(l.callID) + "/" + strings.Join(elem, "/")
}

type playout struct {
	line        *Line
	utteranceID string
}

// WaitForPlayout polls the utterance status until it has been played or the context is done.
func (p *playout) WaitForPlayout(ctx context.Context) error {
	path := p.line.path("utterances", url.PathEscape(p.utteranceID))
	for {
		var status utteranceStatus
		if err := p.line.client.do(ctx, http.MethodGet, path, nil, &status); err != nil {
			return errors.Wrap(err, "poll utterance status", slog.String("utterance_id", p.utteranceID))
		}
		switch status.Status {
		case statusPlayed:
			return nil
		case statusFailed:
			return errors.Wrap(ErrPlayoutFailed, "wait for playout", slog.String("utterance_id", p.utteranceID))
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "wait for playout", slog.String("status", status.Status))
		case <-time.After(p.line.client.pollInterval):
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request", slog.String("path", path))
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			c.logger.LogAttrs(ctx, slog.LevelWarn, "failed to close response body", errors.SlogError(err))
		}
	}()
	if resp.StatusCode/100 != 2 { //nolint:mnd // 2xx
		return errors.New(fmt.Sprintf("media bridge returned %d", resp.StatusCode), slog.String("path", path))
	}
	if out == nil {
		return nil
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response", slog.String("path", path))
	}
	return nil
}
