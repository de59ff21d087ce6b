package call

import (
	"log/slog"
	"sync"
	"time"

	"github.com/myrjola/surveycall/internal/errors"
)

var ErrDuplicateCall = errors.NewSentinel("call already registered")

// Registry routes tool invocations to live calls by ID. Finalized calls stay reachable for the retention period so
// that late tool invocations still get an answer, then they are removed.
type Registry struct {
	mu        sync.RWMutex
	calls     map[string]*Call
	retention time.Duration
}

func NewRegistry(retention time.Duration) *Registry {
	return &Registry{
		mu:        sync.RWMutex{},
		calls:     make(map[string]*Call),
		retention: retention,
	}
}

// Add registers c. The call is removed once it has been finalized and the retention period has passed. A call that
// is never finalized stays registered along with the goroutine waiting for it, so calls should run with a
// Config.MaxDuration.
func (r *Registry) Add(c *Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.calls[c.ID()]; ok {
		return errors.Wrap(ErrDuplicateCall, "add call", slog.String("call_id", c.ID()))
	}
	r.calls[c.ID()] = c
	go func() {
		<-c.Done()
		time.AfterFunc(r.retention, func() {
			r.remove(c)
		})
	}()
	return nil
}

func (r *Registry) Get(id string) (*Call, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.calls[id]
	return c, ok
}

// Live returns the number of calls that have not been finalized.
func (r *Registry) Live() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	live := 0
	for _, c := range r.calls {
		if _, ended := c.Result(); !ended {
			live++
		}
	}
	return live
}

func (r *Registry) remove(c *Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls[c.ID()] == c {
		delete(r.calls, c.ID())
	}
}
