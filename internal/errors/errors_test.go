package errors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/spiderwasp/internal/benchmarks"
	"github.com/copyleftdev/spiderwasp/internal/logging"
	"github.com/copyleftdev/spiderwasp/internal/metrics"
	"github.com/copyleftdev/spiderwasp/internal/optimization"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"explicit", NotFound("no such run"), http.StatusNotFound},
		{"unknown function", fmt.Errorf("lookup: %w", benchmarks.ErrUnknownFunction), http.StatusBadRequest},
		{"configuration", optimization.NewError(optimization.KindConfiguration, "bad"), http.StatusBadRequest},
		{"evaluation", optimization.NewError(optimization.KindEvaluation, "bad"), http.StatusUnprocessableEntity},
		{"numerical", optimization.NewError(optimization.KindNumerical, "nan"), http.StatusUnprocessableEntity},
		{"other", fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}

func TestWriteJSONHidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, fmt.Errorf("secret path /etc/x"))

	var body Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, http.StatusInternalServerError, body.Code)
	assert.Equal(t, http.StatusText(http.StatusInternalServerError), body.Error)

	rec = httptest.NewRecorder()
	WriteJSON(rec, BadRequest("invalid request", fmt.Errorf("dim must be positive")))
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request: dim must be positive", body.Error)
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, http.StatusBadRequest, "x"))
}

func TestRecoveryMiddleware(t *testing.T) {
	var buf bytes.Buffer
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	h := RecoveryMiddleware(logging.New(logging.InfoLevel, &buf), m)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), "kaboom")
	expected := `
# HELP swo_http_panics_recovered_total Panics recovered by the HTTP middleware.
# TYPE swo_http_panics_recovered_total counter
swo_http_panics_recovered_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "swo_http_panics_recovered_total"))
}

func TestErrorHandlerLogsFailures(t *testing.T) {
	var buf bytes.Buffer
	h := ErrorHandler(logging.New(logging.InfoLevel, &buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Contains(t, buf.String(), "Request rejected")
}
