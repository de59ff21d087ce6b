package telephony

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/myrjola/surveycall/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

func newBridge(t *testing.T, pollsUntilPlayed int32, finalStatus string) (*Client, *atomic.Int32, *atomic.Bool) {
	t.Helper()
	var polls atomic.Int32
	var hungUp atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("POST /calls/{callID}/say", func(w http.ResponseWriter, r *http.Request) {
		var req sayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(sayResponse{UtteranceID: r.PathValue("callID") + "-u1"})
	})
	mux.HandleFunc("GET /calls/{callID}/utterances/{id}", func(w http.ResponseWriter, _ *http.Request) {
		status := "playing"
		if polls.Add(1) >= pollsUntilPlayed {
			status = finalStatus
		}
		_ = json.NewEncoder(w).Encode(utteranceStatus{Status: status})
	})
	mux.HandleFunc("POST /calls/{callID}/hangup", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("callID") == "gone" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		hungUp.Store(true)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	client := NewClient(srv.URL, time.Second, testhelpers.NewLogger(io.Discard))
	client.pollInterval = time.Millisecond
	return client, &polls, &hungUp
}

func TestLine(t *testing.T) {
	tests := []struct {
		name        string
		finalStatus string
		wantErr     bool
	}{
		{name: "played", finalStatus: "played", wantErr: false},
		{name: "failed", finalStatus: "failed", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, polls, hungUp := newBridge(t, 3, tt.finalStatus)
			line := client.Line("call-1")
			ctx := context.Background()

			p, err := line.Speak(ctx, "Goodbye!")
			require.NoError(t, err)
			err = p.WaitForPlayout(ctx)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrPlayoutFailed)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, int32(3), polls.Load())

			require.NoError(t, line.Disconnect(ctx))
			require.True(t, hungUp.Load())
		})
	}

	t.Run("playout respects context", func(t *testing.T) {
		client, _, _ := newBridge(t, 1_000_000, "played")
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		p, err := client.Line("call-1").Speak(ctx, "Goodbye!")
		require.NoError(t, err)
		require.ErrorIs(t, p.WaitForPlayout(ctx), context.DeadlineExceeded)
	})

	t.Run("hangup failure", func(t *testing.T) {
		client, _, _ := newBridge(t, 1, "played")
		require.ErrorContains(t, client.Line("gone").Disconnect(context.Background()), "404")
	})
}

func TestConsole(t *testing.T) {
	var b strings.Builder
	console := NewConsole(&b)
	ctx := context.Background()
	p, err := console.Speak(ctx, "Hello")
	require.NoError(t, err)
	require.NoError(t, p.WaitForPlayout(ctx))
	require.NoError(t, console.Disconnect(ctx))
	require.NoError(t, console.Disconnect(ctx))
	<-console.HungUp()
	require.Equal(t, "agent> Hello\n[call disconnected]\n", b.String())
}
