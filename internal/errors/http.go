// Package errors maps domain errors onto the HTTP error envelope used by the
// server and its middleware.
package errors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/3leaps/nimbusview/pkg/navigator"
	"github.com/3leaps/nimbusview/pkg/provider"
)

// Error codes carried in HTTPErrorResponse.
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeAccessDenied       = "ACCESS_DENIED"
	CodeThrottled          = "THROTTLED"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodePageOutOfRange     = "PAGE_OUT_OF_RANGE"
	CodeNoHistory          = "NO_HISTORY"
	CodeSuperseded         = "SUPERSEDED"
	CodeRequestCanceled    = "REQUEST_CANCELED"
	CodeInternal           = "INTERNAL_ERROR"
)

// ErrorBody is the wire form of an error envelope.
type ErrorBody struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// HTTPErrorResponse wraps an ErrorBody under the "error" key.
type HTTPErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// NewEnvelope builds a gofulmen envelope correlated with the request id.
// Scalar values in fields become envelope context; values the context schema
// rejects, such as nested maps, are carried as details.
func NewEnvelope(code, message, requestID string, fields map[string]any) *gferrors.ErrorEnvelope {
	env := gferrors.NewErrorEnvelope(code, message)
	if requestID != "" {
		env = env.WithCorrelationID(requestID)
	}
	if len(fields) == 0 {
		return env
	}
	env, _ = env.WithContext(fields)
	var details map[string]any
	for k, v := range fields {
		if _, ok := env.Context[k]; ok {
			continue
		}
		if details == nil {
			details = make(map[string]any)
		}
		details[k] = v
	}
	if len(env.Context) == 0 {
		env.Context = nil
	}
	if details != nil {
		env = env.WithDetails(details)
	}
	return env
}

// ResponseFrom converts env to its wire form. Context and details are
// merged, details winning on key conflicts.
func ResponseFrom(env *gferrors.ErrorEnvelope) *HTTPErrorResponse {
	body := ErrorBody{
		Code:      env.Code,
		Message:   env.Message,
		RequestID: env.CorrelationID,
	}
	if n := len(env.Context) + len(env.Details); n > 0 {
		body.Details = make(map[string]any, n)
		for k, v := range env.Context {
			body.Details[k] = v
		}
		for k, v := range env.Details {
			body.Details[k] = v
		}
	}
	return &HTTPErrorResponse{Error: body}
}

// BadRequestError marks client input errors.
type BadRequestError struct {
	Field string
	Err   error
}

func (e *BadRequestError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return e.Field + ": " + e.Err.Error()
}

func (e *BadRequestError) Unwrap() error { return e.Err }

// BadRequest wraps err as a BadRequestError for field.
func BadRequest(field string, err error) error {
	return &BadRequestError{Field: field, Err: err}
}

// Classify returns the status code and error code for err.
func Classify(err error) (int, string) {
	var bad *BadRequestError
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest, CodeBadRequest
	case errors.Is(err, navigator.ErrPageOutOfRange):
		return http.StatusBadRequest, CodePageOutOfRange
	case errors.Is(err, navigator.ErrNoHistory):
		return http.StatusConflict, CodeNoHistory
	case errors.Is(err, navigator.ErrSuperseded):
		return http.StatusConflict, CodeSuperseded
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, CodeRequestCanceled
	case provider.IsAccessDenied(err), provider.IsInvalidCredentials(err):
		return http.StatusForbidden, CodeAccessDenied
	case provider.IsNotFound(err), provider.IsBucketNotFound(err):
		return http.StatusNotFound, CodeNotFound
	case provider.IsThrottled(err):
		return http.StatusTooManyRequests, CodeThrottled
	case provider.IsProviderUnavailable(err):
		return http.StatusServiceUnavailable, CodeServiceUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// WriteEnvelope writes env with status as application/json.
func WriteEnvelope(w http.ResponseWriter, status int, env *gferrors.ErrorEnvelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ResponseFrom(env))
}

// Respond writes an envelope built from code and message.
func Respond(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	WriteEnvelope(w, status, NewEnvelope(code, message, chimw.GetReqID(r.Context()), details))
}

// RespondWithError classifies err and writes the matching envelope.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := Classify(err)
	Respond(w, r, status, code, err.Error(), nil)
}

// NotFoundHandler answers unknown routes.
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	Respond(w, r, http.StatusNotFound, CodeNotFound, "route not found: "+r.URL.Path, nil)
}

// MethodNotAllowedHandler answers known routes hit with the wrong method.
func MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	Respond(w, r, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method "+r.Method+" not allowed on "+r.URL.Path, nil)
}
