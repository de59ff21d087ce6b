package contexthelpers

import (
	"context"

	"github.com/myrjola/surveycall/internal/call"
)

// LiveCall returns the call resolved from the request path, nil when the request is not bound to a call.
func LiveCall(ctx context.Context) *call.Call {
	c, ok := ctx.Value(liveCallContextKey).(*call.Call)
	if !ok {
		return nil
	}

	return c
}

func RequestID(ctx context.Context) string {
	requestID, ok := ctx.Value(requestIDContextKey).(string)
	if !ok {
		return ""
	}

	return requestID
}
