package main

import (
	"net/http"

	"github.com/go-chi/render"
)

// ErrResponse is the JSON body of every failed API call.
type ErrResponse struct {
	Err            error `json:"-"`
	HTTPStatusCode int   `json:"-"`

	StatusText string `json:"status"`
	ErrorText  string `json:"error,omitempty"`
}

func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func errResponse(status int, text string, err error) render.Renderer {
	resp := &ErrResponse{
		Err:            err,
		HTTPStatusCode: status,
		StatusText:     text,
	}
	if err != nil {
		resp.ErrorText = err.Error()
	}
	return resp
}

func ErrInvalidRequest(err error) render.Renderer {
	return errResponse(http.StatusBadRequest, "Invalid request.", err)
}

func ErrUnauthorized(err error) render.Renderer {
	return errResponse(http.StatusUnauthorized, "Unauthorized.", err)
}

func ErrPermissionDenied(err error) render.Renderer {
	return errResponse(http.StatusForbidden, "Permission denied.", err)
}

func ErrRender(err error) render.Renderer {
	return errResponse(http.StatusInternalServerError, "Error rendering response.", err)
}

var ErrNotFound = &ErrResponse{HTTPStatusCode: http.StatusNotFound, StatusText: "Resource not found."}
