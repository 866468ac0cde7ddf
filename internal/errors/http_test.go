package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/nimbusview/pkg/navigator"
	"github.com/3leaps/nimbusview/pkg/provider"
)

func TestClassify(t *testing.T) {
	provErr := func(err error) error {
		return &provider.ProviderError{Op: "ListWithDelimiter", Provider: provider.ProviderAzureBlob, Bucket: "$web", Err: err}
	}
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"bad request", BadRequest("page", stderrors.New("must be >= 1")), http.StatusBadRequest, CodeBadRequest},
		{"page out of range", fmt.Errorf("%w: page 9 of 1", navigator.ErrPageOutOfRange), http.StatusBadRequest, CodePageOutOfRange},
		{"no history", navigator.ErrNoHistory, http.StatusConflict, CodeNoHistory},
		{"superseded", navigator.ErrSuperseded, http.StatusConflict, CodeSuperseded},
		{"canceled", context.Canceled, http.StatusGatewayTimeout, CodeRequestCanceled},
		{"access denied", provErr(provider.ErrAccessDenied), http.StatusForbidden, CodeAccessDenied},
		{"container missing", provErr(provider.ErrBucketNotFound), http.StatusNotFound, CodeNotFound},
		{"throttled", provErr(provider.ErrThrottled), http.StatusTooManyRequests, CodeThrottled},
		{"unavailable", provErr(provider.ErrProviderUnavailable), http.StatusServiceUnavailable, CodeServiceUnavailable},
		{"other", stderrors.New("boom"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := Classify(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestRespondWithError_IncludesRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/listing", nil)
	req = req.WithContext(context.WithValue(req.Context(), chimw.RequestIDKey, "req-42"))
	rec := httptest.NewRecorder()

	RespondWithError(rec, req, BadRequest("sort", stderrors.New(`unknown sort field "color"`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, CodeBadRequest, body.Error.Code)
	assert.Equal(t, "req-42", body.Error.RequestID)
	assert.Contains(t, body.Error.Message, "sort:")
}

func TestNewEnvelope(t *testing.T) {
	checks := map[string]string{"source": "unhealthy"}
	env := NewEnvelope(CodePageOutOfRange, "page 3 of 1", "req-7", map[string]any{
		"prefix": "docs/",
		"checks": checks,
	})
	assert.Equal(t, CodePageOutOfRange, env.Code)
	assert.Equal(t, "req-7", env.CorrelationID)
	assert.Equal(t, map[string]interface{}{"prefix": "docs/"}, env.Context)
	assert.Equal(t, map[string]interface{}{"checks": checks}, env.Details)

	env = NewEnvelope(CodeServiceUnavailable, "down", "", map[string]any{"checks": checks})
	assert.Nil(t, env.Context)
	assert.Equal(t, map[string]interface{}{"checks": checks}, env.Details)

	env = NewEnvelope(CodeInternal, "x", "", nil)
	assert.Empty(t, env.CorrelationID)
	assert.Nil(t, env.Context)
}

func TestResponseFrom_MergesContextAndDetails(t *testing.T) {
	env := NewEnvelope(CodeThrottled, "slow down", "req-1", map[string]any{"prefix": "img/", "attempt": 1})
	env = env.WithDetails(map[string]interface{}{"attempt": 4})

	resp := ResponseFrom(env)
	assert.Equal(t, CodeThrottled, resp.Error.Code)
	assert.Equal(t, "req-1", resp.Error.RequestID)
	assert.Equal(t, map[string]any{"prefix": "img/", "attempt": 4}, resp.Error.Details)

	assert.Nil(t, ResponseFrom(NewEnvelope(CodeInternal, "x", "", nil)).Error.Details)
}
