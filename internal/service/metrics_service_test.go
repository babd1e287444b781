package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsServiceExposesClearanceCounters(t *testing.T) {
	metrics := NewMetricsService()
	metrics.ObserveHTTPRequest(http.MethodPost, "/api/v1/clearances", http.StatusCreated, 15*time.Millisecond)
	metrics.RecordSubmission(clearanceOutcomeSuccess)
	metrics.RecordStepAction("APPROVE", clearanceOutcomeConflict)

	body := scrapeMetrics(t, metrics)
	assert.Contains(t, body, `http_requests_total{method="POST",path="/api/v1/clearances",status="201"} 1`)
	assert.Contains(t, body, `clearance_submissions_total{outcome="success"} 1`)
	assert.Contains(t, body, `clearance_step_actions_total{action="APPROVE",outcome="already_actioned"} 1`)
	assert.Contains(t, body, "goroutines_total")
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var metrics *MetricsService
	metrics.RecordSubmission("success")
	metrics.RecordStepAction("APPROVE", "success")
	metrics.RecordNotification("queued")
	metrics.RecordCacheOperation(true, time.Millisecond)
	assert.Nil(t, metrics.Registry())

	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
