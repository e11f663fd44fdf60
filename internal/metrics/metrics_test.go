package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New()

	m.ListingCreated()
	m.ListingCreated()
	m.ListingRejected(ReasonValidation)
	m.Notification(ResultSent)
	m.Notification(ResultFailed)
	m.Notification(ResultFailed)
	m.EventDropped()
	m.HTTPRequest(http.MethodGet, http.StatusOK)
	m.HTTPRequest(http.MethodGet, http.StatusNoContent)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.listingsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.listingsRejected.WithLabelValues(ReasonValidation)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.notifications.WithLabelValues(ResultFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsDropped))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodGet, "2xx")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ListingCreated()
	m.ListingRejected(ReasonStorage)
	m.Notification(ResultSkipped)
	m.EventDropped()
	m.HTTPRequest(http.MethodPost, http.StatusCreated)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ListingCreated()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "aimarket_listings_created_total 1"), body)
	assert.Contains(t, body, "go_goroutines")
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{
		101: "1xx",
		200: "2xx",
		301: "3xx",
		404: "4xx",
		429: "4xx",
		503: "5xx",
	}
	for status, want := range tests {
		if got := statusClass(status); got != want {
			t.Errorf("statusClass(%d) = %q, want %q", status, got, want)
		}
	}
}
