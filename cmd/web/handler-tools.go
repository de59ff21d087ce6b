package main

import (
	"io"
	"net/http"

	"github.com/myrjola/surveycall/internal/contexthelpers"
	"github.com/myrjola/surveycall/internal/errors"
	"github.com/myrjola/surveycall/internal/tools"
)

type toolResponse struct {
	Result string `json:"result"`
}

// invokeTool is the webhook the agent platform calls for every tool call. The body holds the JSON arguments.
func (app *application) invokeTool(w http.ResponseWriter, r *http.Request) {
	c := contexthelpers.LiveCall(r.Context())
	arguments, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		app.clientErrorMessage(w, r, http.StatusBadRequest, errors.Wrap(err, "read arguments").Error())
		return
	}

	name := r.PathValue("tool")
	app.metrics.ToolInvoked(name, tools.Known(name))
	toolbox := tools.New(c, app.scheduler, app.voice)
	result := toolbox.Invoke(r.Context(), name, string(arguments))
	app.writeJSON(w, r, http.StatusOK, toolResponse{Result: result})
}
