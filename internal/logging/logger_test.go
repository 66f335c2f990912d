package logging

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &entry), sc.Text())
		out = append(out, entry)
	}
	return out
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	log := New(WarnLevel, &buf)

	log.Debug("hidden")
	log.Info("hidden")
	log.Warn("shown", map[string]interface{}{"n": 1})
	log.Error("shown too")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "WARN", entries[0]["level"])
	assert.Equal(t, "shown", entries[0]["message"])
	assert.Equal(t, float64(1), entries[0]["n"])
	assert.Equal(t, "ERROR", entries[1]["level"])
	assert.Contains(t, entries[0], "timestamp")
	assert.Contains(t, entries[0]["caller"], "logging/logger_test.go")
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(DebugLevel, &buf).
		WithField("component", "runner").
		WithError(errors.New("boom"))

	log.WithFields(map[string]interface{}{"function": "sphere"}).Info("done")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "runner", entries[0]["component"])
	assert.Equal(t, "boom", entries[0]["error"])
	assert.Equal(t, "sphere", entries[0]["function"])
}

func TestZapSharesCore(t *testing.T) {
	var buf bytes.Buffer
	log := New(InfoLevel, &buf).WithField("run", "abc")

	log.Zap().Info("from zap")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "abc", entries[0]["run"])
	assert.Contains(t, entries[0]["caller"], "logging/logger_test.go")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLevel("warning"))
	assert.Equal(t, ErrorLevel, ParseLevel("ERROR"))
	assert.Equal(t, InfoLevel, ParseLevel("chatty"))
}

func TestNewLoggerRejectsUnknownFormat(t *testing.T) {
	_, err := NewLogger(&Config{Level: "info", Format: "xml", Output: "stderr"})
	assert.Error(t, err)

	log, err := NewLogger(nil)
	require.NoError(t, err)
	assert.NotNil(t, log)
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	ctx := (&CtxLogger{New(InfoLevel, &buf)}).WithContext(context.Background())

	FromContext(ctx).Info("via context")
	assert.Len(t, decodeLines(t, &buf), 1)

	assert.NotNil(t, FromContext(context.Background()))
}

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	h := Middleware(New(InfoLevel, &buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("inside handler")
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/functions", nil))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "inside handler", entries[0]["message"])
	assert.Equal(t, "/api/v1/functions", entries[0]["path"])
	assert.Equal(t, "Request completed", entries[1]["message"])
	assert.Equal(t, float64(http.StatusTeapot), entries[1]["status"])
	assert.Equal(t, http.StatusText(http.StatusTeapot), entries[1]["error"])
}
