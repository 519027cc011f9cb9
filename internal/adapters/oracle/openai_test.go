package oracle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyagent/internal/domain"
)

func TestParseEstimate(t *testing.T) {
	content := `PROBABILITY: 0.72
CONFIDENCE: high
RATIONALE: Polling average moved 6 points since the market last repriced.`

	est, err := parseEstimate(content)
	require.NoError(t, err)
	assert.Equal(t, 0.72, est.Probability)
	assert.Equal(t, domain.ConfidenceHigh, est.Confidence)
	assert.Contains(t, est.Rationale, "Polling average")
}

func TestParseEstimateClampsExtremes(t *testing.T) {
	est, err := parseEstimate("PROBABILITY: 1.0")
	require.NoError(t, err)
	assert.Equal(t, 0.99, est.Probability)

	est, err = parseEstimate("PROBABILITY: 0.001")
	require.NoError(t, err)
	assert.Equal(t, 0.01, est.Probability)
}

func TestParseEstimateErrors(t *testing.T) {
	_, err := parseEstimate("the market looks cheap to me")
	assert.Error(t, err)

	_, err = parseEstimate("PROBABILITY: 1.7")
	assert.Error(t, err)
}

func TestParseEstimateDefaultsConfidence(t *testing.T) {
	est, err := parseEstimate("PROBABILITY: 0.50")
	require.NoError(t, err)
	assert.Equal(t, domain.ConfidenceLow, est.Confidence)
	assert.Empty(t, est.Rationale)
}

func TestEstimateRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, completionsPath, r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"PROBABILITY: 0.65\nCONFIDENCE: medium\nRATIONALE: test"}}]}`))
	}))
	defer srv.Close()

	o := New(srv.URL, "test-key", "test-model")
	est, err := o.Estimate(context.Background(), "Will it rain?", 0.50, "")
	require.NoError(t, err)
	assert.Equal(t, 0.65, est.Probability)
	assert.Equal(t, domain.ConfidenceMedium, est.Confidence)
}

func TestEstimateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"bad model"}}`))
	}))
	defer srv.Close()

	o := New(srv.URL, "test-key", "bad-model")
	_, err := o.Estimate(context.Background(), "Will it rain?", 0.50, "")
	assert.Error(t, err)
}
