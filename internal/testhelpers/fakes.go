package testhelpers

import (
	"context"
	"sync"

	"github.com/myrjola/surveycall/internal/call"
	"github.com/myrjola/surveycall/internal/models"
)

// FakePhone records what was said on the line. Playout completes immediately unless PlayoutGate is set, in which
// case it completes when the gate is closed.
type FakePhone struct {
	mu            sync.Mutex
	utterances    []string
	disconnects   int
	SpeakErr      error
	DisconnectErr error
	PlayoutGate   chan struct{}
}

type fakePlayout struct {
	gate chan struct{}
}

func (p fakePlayout) WaitForPlayout(ctx context.Context) error {
	if p.gate == nil {
		return nil
	}
	select {
	case <-p.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *FakePhone) Speak(_ context.Context, text string) (call.Playout, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.SpeakErr != nil {
		return nil, p.SpeakErr
	}
	p.utterances = append(p.utterances, text)
	return fakePlayout{gate: p.PlayoutGate}, nil
}

func (p *FakePhone) Disconnect(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disconnects++
	return p.DisconnectErr
}

func (p *FakePhone) Utterances() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.utterances...)
}

func (p *FakePhone) Disconnects() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disconnects
}

// RecordingStore keeps saved call records in memory.
type RecordingStore struct {
	mu      sync.Mutex
	records []models.CallRecord
	Err     error
}

func (s *RecordingStore) SaveCall(_ context.Context, record models.CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return s.Err
}

func (s *RecordingStore) Records() []models.CallRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.CallRecord(nil), s.records...)
}

// RecordingNotifier keeps the notifications it was asked to send.
type RecordingNotifier struct {
	mu      sync.Mutex
	answers []models.TranscriptEntry
	ended   []models.CallRecord
}

func (n *RecordingNotifier) AnswerRecorded(_ context.Context, _ string, entry models.TranscriptEntry) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.answers = append(n.answers, entry)
}

func (n *RecordingNotifier) CallEnded(_ context.Context, record models.CallRecord) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ended = append(n.ended, record)
}

func (n *RecordingNotifier) Answers() []models.TranscriptEntry {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.TranscriptEntry(nil), n.answers...)
}

func (n *RecordingNotifier) Ended() []models.CallRecord {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.CallRecord(nil), n.ended...)
}
