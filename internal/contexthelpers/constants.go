package contexthelpers

type contextKey string

const liveCallContextKey = contextKey("liveCall")
const requestIDContextKey = contextKey("requestID")
