package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReturnsNilWhenDisabled(t *testing.T) {
	m, err := New(&Config{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, m)

	m, err = New(nil)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestNilMetricsMethodsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordProviderCall("gpt-4o", "openai", 1.2)
		m.RecordProviderTokens("gpt-4o", "openai", 100, 50)
		m.RecordProviderError("gpt-4o", "openai", "timeout")
		m.IncChunksInFlight()
		m.DecChunksInFlight()
		m.RecordChunkOutcome("fallback")
		m.RecordQualityReport(2, 85.5)
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsRecordsExposeOnHandler(t *testing.T) {
	m, err := New(&Config{Enabled: true})
	require.NoError(t, err)
	require.NotNil(t, m)

	m.RecordProviderCall("gpt-4o", "openai", 0.5)
	m.RecordProviderTokens("gpt-4o", "openai", 10, 20)
	m.RecordChunkOutcome("fallback")
	m.RecordQualityReport(1, 90)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "regender_provider_calls_total"))
	assert.True(t, strings.Contains(body, "regender_pipeline_alignment_fallback_total"))
}
