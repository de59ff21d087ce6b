package call

import (
	"log/slog"
	"strings"

	"github.com/myrjola/surveycall/internal/errors"
)

// EndReason records why a call ended. Exactly one is stored per call.
type EndReason string

const (
	Completed         EndReason = "completed"
	WrongPerson       EndReason = "wrong_person"
	Declined          EndReason = "declined"
	NotAvailable      EndReason = "not_available"
	CallbackScheduled EndReason = "callback_scheduled"
	LinkSent          EndReason = "link_sent"
	TimeLimit         EndReason = "time_limit"
)

var ErrUnknownEndReason = errors.NewSentinel("unknown end reason")

// EndReasons lists every valid reason in a stable order.
func EndReasons() []EndReason {
	return []EndReason{Completed, WrongPerson, Declined, NotAvailable, CallbackScheduled, LinkSent, TimeLimit}
}

// ParseEndReason accepts the agent-facing spelling of a reason, ignoring case and surrounding whitespace.
func ParseEndReason(s string) (EndReason, error) {
	candidate := EndReason(strings.ToLower(strings.TrimSpace(s)))
	for _, reason := range EndReasons() {
		if candidate == reason {
			return reason, nil
		}
	}
	return "", errors.Wrap(ErrUnknownEndReason, "parse end reason", slog.String("reason", s))
}

func (r EndReason) String() string {
	return string(r)
}
