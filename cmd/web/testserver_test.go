package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/myrjola/surveycall/internal/e2etest"
	"github.com/myrjola/surveycall/internal/repositories"
	"github.com/myrjola/surveycall/internal/sqlite"
	"github.com/myrjola/surveycall/internal/survey"
	"github.com/myrjola/surveycall/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

// collaborators fakes every HTTP service the server talks to and records the requests it receives.
type collaborators struct {
	server *httptest.Server

	mu       sync.Mutex
	requests []string
}

func newCollaborators(t *testing.T) *collaborators {
	t.Helper()
	c := &collaborators{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /calls/{callID}/say", func(w http.ResponseWriter, r *http.Request) {
		c.record(r)
		_, _ = w.Write([]byte(`{"utterance_id":"u1"}`))
	})
	mux.HandleFunc("GET /calls/{callID}/utterances/{utteranceID}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"played"}`))
	})
	mux.HandleFunc("POST /calls/{callID}/hangup", func(w http.ResponseWriter, r *http.Request) {
		c.record(r)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /api/voice/{endpoint}", func(w http.ResponseWriter, r *http.Request) {
		c.record(r)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /scheduler/schedule-call", func(w http.ResponseWriter, r *http.Request) {
		c.record(r)
		w.WriteHeader(http.StatusOK)
	})
	c.server = httptest.NewServer(mux)
	t.Cleanup(c.server.Close)
	return c
}

func (c *collaborators) record(r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, r.Method+" "+r.URL.Path)
}

// count returns how many recorded requests have a path ending with suffix.
func (c *collaborators) count(suffix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, req := range c.requests {
		if strings.HasSuffix(req, suffix) {
			n++
		}
	}
	return n
}

// seedDatabase creates a database file with the ride feedback survey and returns its URL.
func seedDatabase(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	dbURL := filepath.Join(t.TempDir(), "surveycall.sqlite3")
	db, err := sqlite.NewDatabase(ctx, dbURL, testhelpers.NewLogger(io.Discard))
	require.NoError(t, err)
	s, err := survey.New("ride-feedback", "Ride feedback", []survey.Question{
		{ID: "q1", Text: "How was your ride?", Kind: survey.KindScale, ScaleMax: 5},
		{ID: "q2", Text: "Was the driver on time?", Kind: survey.KindCategorical, Categories: []string{"Yes", "No"}},
		{ID: "q3", Text: "What went wrong?", Kind: survey.KindOpen, ParentID: "q2", TriggerCategories: []string{"No"}},
	})
	require.NoError(t, err)
	require.NoError(t, repositories.NewSurveyRepository(db, testhelpers.NewLogger(io.Discard)).Save(ctx, s))
	require.NoError(t, db.Close())
	return dbURL
}

func testLookupEnv(dbURL string, fakes *collaborators, extra map[string]string) func(string) (string, bool) {
	env := map[string]string{
		"SURVEYCALL_ADDR":            "localhost:0",
		"SURVEYCALL_SQLITE_URL":      dbURL,
		"VOICE_SERVICE_URL":          fakes.server.URL,
		"SCHEDULER_SERVICE_URL":      fakes.server.URL,
		"TELEPHONY_URL":              fakes.server.URL,
		"SURVEYCALL_FAREWELL_BUFFER": "0s",
		"SURVEYCALL_AUTO_END_GRACE":  "1m",
	}
	for k, v := range extra {
		env[k] = v
	}
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

// startTestServer starts the server against fakes and a seeded database. It is stopped when the test ends.
func startTestServer(t *testing.T, fakes *collaborators, extraEnv map[string]string) *e2etest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	server, err := e2etest.StartServer(ctx, io.Discard, testLookupEnv(seedDatabase(t), fakes, extraEnv), run)
	if err != nil {
		cancel()
		require.NoError(t, err)
	}
	t.Cleanup(func() {
		cancel()
		<-server.Stopped()
	})
	return server
}
