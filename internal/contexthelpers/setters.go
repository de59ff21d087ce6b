package contexthelpers

import (
	"context"
	"net/http"

	"github.com/myrjola/surveycall/internal/call"
)

func SetLiveCall(r *http.Request, c *call.Call) *http.Request {
	ctx := context.WithValue(r.Context(), liveCallContextKey, c)
	return r.WithContext(ctx)
}

func SetRequestID(r *http.Request, requestID string) *http.Request {
	ctx := context.WithValue(r.Context(), requestIDContextKey, requestID)
	return r.WithContext(ctx)
}
