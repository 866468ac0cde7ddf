package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/3leaps/nimbusview/internal/errors"
	"github.com/3leaps/nimbusview/pkg/navigator"
	"github.com/3leaps/nimbusview/pkg/provider"
)

func restoreResponder(t *testing.T) {
	t.Helper()
	responderMu.RLock()
	original := httpErrorResponder
	responderMu.RUnlock()
	t.Cleanup(func() { SetHTTPErrorResponder(original) })
}

func TestRespondWithError_DefaultMapping(t *testing.T) {
	restoreResponder(t)
	ResetHTTPErrorResponder()

	throttled := &provider.ProviderError{
		Op:       "ListWithDelimiter",
		Provider: provider.ProviderS3,
		Bucket:   "site",
		Key:      "docs/",
		Err:      provider.ErrThrottled,
	}
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"page out of range", fmt.Errorf("%w: page 4 of 2", navigator.ErrPageOutOfRange), http.StatusBadRequest, apperrors.CodePageOutOfRange},
		{"throttled listing", throttled, http.StatusTooManyRequests, apperrors.CodeThrottled},
		{"no history", navigator.ErrNoHistory, http.StatusConflict, apperrors.CodeNoHistory},
		{"bad sort", apperrors.BadRequest("sort", fmt.Errorf("unknown sort field %q", "color")), http.StatusBadRequest, apperrors.CodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/listing", nil)
			req = req.WithContext(context.WithValue(req.Context(), chimw.RequestIDKey, "req-9"))
			rec := httptest.NewRecorder()

			respondWithError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body apperrors.HTTPErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.wantCode, body.Error.Code)
			assert.Equal(t, "req-9", body.Error.RequestID)
			assert.Equal(t, tt.err.Error(), body.Error.Message)
		})
	}
}

func TestSetHTTPErrorResponder(t *testing.T) {
	restoreResponder(t)

	var captured error
	SetHTTPErrorResponder(func(w http.ResponseWriter, r *http.Request, err error) {
		captured = err
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	respondWithError(rec, httptest.NewRequest(http.MethodPost, "/api/v1/back", nil), navigator.ErrNoHistory)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.ErrorIs(t, captured, navigator.ErrNoHistory)

	SetHTTPErrorResponder(nil)
	rec = httptest.NewRecorder()
	respondWithError(rec, httptest.NewRequest(http.MethodPost, "/api/v1/back", nil), navigator.ErrNoHistory)
	assert.Equal(t, http.StatusConflict, rec.Code, "nil restores the default responder")
}
