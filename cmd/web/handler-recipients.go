package main

import (
	"net/http"

	"github.com/myrjola/surveycall/internal/models"
)

type recipientCallsResponse struct {
	Calls []models.CallRecord `json:"calls"`
}

// recipientCalls lists the finished calls to a phone number, newest first.
func (app *application) recipientCalls(w http.ResponseWriter, r *http.Request) {
	records, err := app.callStore.ListByRecipient(r.Context(), r.PathValue("phone"))
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, recipientCallsResponse{Calls: records})
}
