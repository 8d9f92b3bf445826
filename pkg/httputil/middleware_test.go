package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confsys/sitecfg/pkg/contextkeys"
	"github.com/confsys/sitecfg/pkg/observability"
)

func TestLoggingMiddlewareGeneratesRequestID(t *testing.T) {
	var seen string
	handler := LoggingMiddleware(observability.NopLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = contextkeys.GetRequestID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/config/site", nil))

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestLoggingMiddlewareReusesSuppliedRequestID(t *testing.T) {
	var seen string
	handler := LoggingMiddleware(observability.NopLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = contextkeys.GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/config/site", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", seen)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
}

func TestLoggingMiddlewarePutsActorInContext(t *testing.T) {
	var actor string
	handler := LoggingMiddleware(observability.NopLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor = contextkeys.GetActor(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPut, "/config/site", nil)
	req.Header.Set("X-Actor", "alice")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "alice", actor)

	// Without the header the context stays empty.
	actor = "unset"
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/config/site", nil))
	assert.Equal(t, "", actor)
}

func TestRecoveryMiddlewareReturnsInternalError(t *testing.T) {
	handler := RecoveryMiddleware(observability.NopLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/config/site", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
