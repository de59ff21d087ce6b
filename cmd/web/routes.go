package main

import (
	"net/http"

	"github.com/justinas/alice"
)

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	tool := alice.New(app.requireToolSecret, app.liveCall)

	mux.HandleFunc("GET /api/healthy", app.healthy)
	mux.Handle("GET /metrics", app.metrics.Handler())
	mux.HandleFunc("POST /api/calls", app.startCall)
	mux.Handle("GET /api/calls/{callID}", alice.New(app.liveCall).ThenFunc(app.callProgress))
	mux.Handle("POST /api/calls/{callID}/tools/{tool}", tool.ThenFunc(app.invokeTool))
	mux.HandleFunc("GET /api/recipients/{phone}/calls", app.recipientCalls)
	mux.HandleFunc("/", app.notFound)

	return alice.New(app.recoverPanic, app.logRequest, secureHeaders).Then(mux)
}
