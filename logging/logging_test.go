package logging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNew_JSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New("warn", "json", &buf)

	log.Info().Msg("hidden")
	log.Warn().Str("stage", "summaries").Msg("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["message"])
	assert.Equal(t, "summaries", entry["stage"])
	assert.Equal(t, "rubber-purchases", entry["service"])
}

func TestFromContext_DefaultsToNop(t *testing.T) {
	log := FromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.Equal(t, zerolog.Disabled, log.GetLevel())
}

func TestRequestLogger(t *testing.T) {
	// GIVEN: a handler that fails with 504
	// WHEN: it runs behind RequestID and RequestLogger
	// THEN: one warn-or-worse line carries status and request id

	var buf bytes.Buffer
	log := New("info", "json", &buf)

	var sawLogger bool
	h := middleware.RequestID(RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawLogger = FromContext(r.Context()).GetLevel() != zerolog.Disabled
		w.WriteHeader(http.StatusGatewayTimeout)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/purchases/transactions", nil))

	assert.True(t, sawLogger)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, float64(http.StatusGatewayTimeout), entry["status"])
	assert.Equal(t, "/api/purchases/transactions", entry["path"])
	assert.NotEmpty(t, entry["requestId"])
}
