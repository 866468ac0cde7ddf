// Package handlers implements the HTTP handlers behind the server's routes.
package handlers

import (
	"net/http"
	"sync"

	apperrors "github.com/3leaps/nimbusview/internal/errors"
)

// HTTPErrorResponder writes an error response for err.
type HTTPErrorResponder func(w http.ResponseWriter, r *http.Request, err error)

var (
	responderMu        sync.RWMutex
	httpErrorResponder HTTPErrorResponder = apperrors.RespondWithError
)

// SetHTTPErrorResponder replaces the error responder. Nil restores the default.
func SetHTTPErrorResponder(fn HTTPErrorResponder) {
	responderMu.Lock()
	defer responderMu.Unlock()
	if fn == nil {
		fn = apperrors.RespondWithError
	}
	httpErrorResponder = fn
}

// ResetHTTPErrorResponder restores the default error responder.
func ResetHTTPErrorResponder() {
	SetHTTPErrorResponder(nil)
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	responderMu.RLock()
	fn := httpErrorResponder
	responderMu.RUnlock()
	fn(w, r, err)
}
