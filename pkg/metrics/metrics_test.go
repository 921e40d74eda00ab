package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObserveTurn("TriageAgent")
	m.ObserveTurn("TriageAgent")
	m.ObserveSelectionFallback("parse")
	m.ObserveCapability("send_email", "ok", 5*time.Millisecond)
	m.ObserveCapability("send_email", "validation", time.Millisecond)
	m.ObserveHandoff("TriageAgent", "RefundAgent", "accepted")
	m.ObserveReasoning("TriageAgent", time.Second, nil)
	m.ObserveReasoning("TriageAgent", time.Second, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.turns.WithLabelValues("TriageAgent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.selectionFallbacks.WithLabelValues("parse")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.capabilityCalls.WithLabelValues("send_email", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.capabilityCalls.WithLabelValues("send_email", "validation")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.handoffs.WithLabelValues("TriageAgent", "RefundAgent", "accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reasoningFailures.WithLabelValues("TriageAgent")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveTurn("a")
		m.ObserveSelectionFallback("parse")
		m.ObserveCapability("c", "ok", time.Second)
		m.ObserveHandoff("a", "b", "rejected")
		m.ObserveReasoning("a", time.Second, nil)
	})
	assert.Nil(t, m.Registry())
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveTurn("ResponseAgent")

	srv := httptest.NewServer(NewHandler(m))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `palaver_turns_total{speaker="ResponseAgent"} 1`)
}
