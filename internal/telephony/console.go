package telephony

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/myrjola/surveycall/internal/call"
)

// Console is a [call.Phone] that prints what would be spoken. It backs the command line simulator.
type Console struct {
	mu     sync.Mutex
	w      io.Writer
	hungUp chan struct{}
}

func NewConsole(w io.Writer) *Console {
	return &Console{mu: sync.Mutex{}, w: w, hungUp: make(chan struct{})}
}

type donePlayout struct{}

func (donePlayout) WaitForPlayout(context.Context) error {
	return nil
}

func (c *Console) Speak(_ context.Context, text string) (call.Playout, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintf(c.w, "agent> %s\n", text); err != nil {
		return nil, err
	}
	return donePlayout{}, nil
}

func (c *Console) Disconnect(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.hungUp:
		return nil
	default:
		close(c.hungUp)
	}
	_, err := fmt.Fprintln(c.w, "[call disconnected]")
	return err
}

// HungUp is closed once the call has been disconnected.
func (c *Console) HungUp() <-chan struct{} {
	return c.hungUp
}
