// Package httpx writes the standard response envelope:
// {"success": bool, "data"?: ..., "message"?: ..., "code"?: ...}.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tradeshield/escrow-backend/internal/apperr"
)

type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func OK(w http.ResponseWriter, status int, data any) {
	WriteJSON(w, status, Envelope{Success: true, Data: data})
}

func WriteError(w http.ResponseWriter, status int, code, msg string) {
	WriteJSON(w, status, Envelope{Success: false, Code: code, Message: msg})
}

// Err maps a taxonomy error onto the wire. Internal errors keep their
// detail out of the response body.
func Err(w http.ResponseWriter, err error) {
	var e *apperr.Error
	if errors.As(err, &e) {
		msg := e.Msg
		if e.Kind == apperr.KindInternal {
			msg = "internal error"
		}
		WriteError(w, e.Kind.HTTPStatus(), e.Kind.Code(), msg)
		return
	}
	WriteError(w, http.StatusInternalServerError, apperr.KindInternal.Code(), "internal error")
}
