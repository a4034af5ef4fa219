package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/CodedInternet/matthieu/onboard/journal"
	"github.com/go-chi/render"
)

const (
	DEFAULT_SESSION_LIMIT = 20
	MAX_SESSION_LIMIT     = 500
)

type SessionsPayload struct {
	Current *journal.Record  `json:"current"`
	Recent  []journal.Record `json:"recent"`
}

// StateHandler returns the last commanded state of both actuators.
func StateHandler(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, ENV.Device.Machine.Snapshot())
}

func InfoHandler(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, ENV.Device.Info())
}

// SessionsHandler lists the session in progress, if any, and the most recent
// finished ones. ?limit=n bounds the list.
func SessionsHandler(w http.ResponseWriter, r *http.Request) {
	limit := DEFAULT_SESSION_LIMIT
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 || n > MAX_SESSION_LIMIT {
			render.Render(w, r, ErrInvalidRequest(errors.New("limit must be between 1 and 500")))
			return
		}
		limit = n
	}

	recent, err := ENV.Journal.Recent(limit)
	if err != nil {
		render.Render(w, r, ErrRender(err))
		return
	}

	payload := SessionsPayload{Recent: recent}
	if current, ok := ENV.Control.Current(); ok {
		payload.Current = &current
	}
	render.JSON(w, r, payload)
}
