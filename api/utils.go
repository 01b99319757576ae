package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"scoreline/service"
	"scoreline/storage"

	"github.com/gorilla/mux"
)

const maxRequestBodyBytes = 1 << 20

// Client-facing messages for failures whose cause must stay in the logs.
const (
	msgOverloaded = "unable to handle request, due to temporary overload or maintenance"
	msgInternal   = "unable to process request, please try again later"
)

// errorResponse is the JSON body of every error response.
type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error and logs the underlying cause. Server-side
// failures log at error level, client mistakes at debug.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, statusCode int, message string, err error) {
	logger := a.requestLogger(r)
	if statusCode >= http.StatusInternalServerError {
		logger.Errorw(message, "status_code", statusCode, "path", r.URL.Path, "error", err)
	} else {
		logger.Debugw(message, "status_code", statusCode, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, statusCode, errorResponse{Error: message})
}

func (a *API) writeValidationError(w http.ResponseWriter, r *http.Request, issues ...string) {
	a.requestLogger(r).Debugw("Request validation failed", "path", r.URL.Path, "issues", issues)
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: service.ErrValidation.Error(), Details: issues})
}

// handleServiceError maps service and storage errors onto HTTP responses.
func (a *API) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		a.writeValidationError(w, r, verr.Issues...)
	case errors.Is(err, service.ErrValidation):
		a.writeValidationError(w, r, err.Error())
	case errors.Is(err, storage.ErrMatchNotFound):
		a.writeError(w, r, http.StatusNotFound, "match not found", err)
	case errors.Is(err, storage.ErrQueryTimeout):
		a.writeError(w, r, http.StatusServiceUnavailable, msgOverloaded, err)
	default:
		a.writeError(w, r, http.StatusInternalServerError, msgInternal, err)
	}
}

// decodeJSONBody decodes a size-limited JSON request body into dst. On
// failure it has already written the response.
func (a *API) decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return nil
	}

	var syntaxError *json.SyntaxError
	var unmarshalTypeError *json.UnmarshalTypeError
	var maxBytesError *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesError):
		a.writeError(w, r, http.StatusRequestEntityTooLarge, "request body too large", err)
	case errors.As(err, &syntaxError):
		a.writeValidationError(w, r, fmt.Sprintf("invalid JSON syntax at byte offset %d", syntaxError.Offset))
	case errors.As(err, &unmarshalTypeError):
		a.writeValidationError(w, r, fmt.Sprintf("invalid type for field '%s': expected %s", unmarshalTypeError.Field, unmarshalTypeError.Type))
	default:
		a.writeValidationError(w, r, "invalid JSON body")
	}
	return err
}

// matchIDParam parses the {id} route variable as a positive integer.
func matchIDParam(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid match id %q", raw)
	}
	return id, nil
}
