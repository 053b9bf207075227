package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/ignite/mailevents/internal/pkg/apperr"
	"github.com/ignite/mailevents/internal/pkg/logger"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope is the standard body for every API response.
type Envelope struct {
	Status           string `json:"status"`
	Error            string `json:"error,omitempty"`
	Message          string `json:"message,omitempty"`
	TechnicalDetails string `json:"technical_details,omitempty"`
	Data             any    `json:"data,omitempty"`
}

// JSON writes a JSON response with the given status code. The data is
// serialized and Content-Type is set automatically.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("httputil: JSON encode failed", "error", err)
	}
}

// OK writes a 200 success envelope carrying data.
func OK(w http.ResponseWriter, message string, data any) {
	JSON(w, http.StatusOK, Envelope{Status: StatusSuccess, Message: message, Data: data})
}

// Created writes a 201 success envelope carrying data.
func Created(w http.ResponseWriter, message string, data any) {
	JSON(w, http.StatusCreated, Envelope{Status: StatusSuccess, Message: message, Data: data})
}

// Fail writes the error envelope for err. The category and status come from
// the apperr kind in err's chain; unclassified errors become 500s.
func Fail(w http.ResponseWriter, err error) {
	FailWith(w, err, nil)
}

// FailWith is Fail with a data payload, used when a failure still has
// results worth returning (e.g. partial batches).
func FailWith(w http.ResponseWriter, err error, data any) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	msg := apperr.MessageOf(err, "An internal error occurred")

	env := Envelope{Status: StatusError, Error: string(kind), Message: msg, Data: data}
	if err != nil {
		env.TechnicalDetails = err.Error()
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "category", string(kind), "error", err)
	}
	JSON(w, status, env)
}

// BadRequest writes a 400 validation envelope.
func BadRequest(w http.ResponseWriter, message string) {
	Fail(w, apperr.New(apperr.KindValidation, "%s", message))
}

// Decode reads JSON from the request body into dst.
// Returns false and writes a 400 response if parsing fails.
func Decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		Fail(w, apperr.Wrap(apperr.KindValidation, err, "invalid JSON body"))
		return false
	}
	return true
}
