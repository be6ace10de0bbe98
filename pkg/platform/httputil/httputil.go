// Package httputil centralizes JSON encoding, request validation and domain
// error translation for HTTP handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	domainerrors "github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/pkg/domain-errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError translates a domain error into a JSON error envelope. Internal
// errors keep their detail out of the response body.
func WriteError(w http.ResponseWriter, err error) {
	status := domainerrors.HTTPStatus(err)
	body := map[string]string{"error": errorCode(err)}
	if status < http.StatusInternalServerError {
		var de *domainerrors.Error
		if errors.As(err, &de) && de.Message != "" {
			body["error_description"] = de.Message
		}
	}
	WriteJSON(w, status, body)
}

func errorCode(err error) string {
	var de *domainerrors.Error
	if errors.As(err, &de) {
		return string(de.Code)
	}
	return string(domainerrors.CodeInternal)
}

// Decode parses and validates a JSON request body into T. Validation uses
// the struct's validate tags.
func Decode[T any](r *http.Request) (T, error) {
	var req T
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		return req, domainerrors.Wrap(domainerrors.CodeBadRequest, "malformed request body", err)
	}
	if err := validate.Struct(&req); err != nil {
		return req, domainerrors.Wrap(domainerrors.CodeInvalidInput, "request failed validation", err)
	}
	return req, nil
}

// DecodeAndPrepare decodes the request and writes the error response itself,
// so handlers stay a single early-return.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	req, err := Decode[T](r)
	if err != nil {
		WriteError(w, err)
		return req, false
	}
	return req, true
}
