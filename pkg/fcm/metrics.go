package fcm

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for provider calls. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec   // by api_version, operation, status
	RequestDuration *prometheus.HistogramVec // by api_version, operation
	TokenRefreshes  *prometheus.CounterVec   // by status
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fcm_requests_total",
				Help: "Total number of FCM HTTP requests by API version, operation and status",
			},
			[]string{"api_version", "operation", "status"}, // status: success, error
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fcm_request_duration_seconds",
				Help:    "Latency of FCM HTTP requests by API version and operation",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
			},
			[]string{"api_version", "operation"},
		),
		TokenRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fcm_token_refreshes_total",
				Help: "Total number of OAuth2 access token refreshes by status",
			},
			[]string{"status"},
		),
	}

	for _, c := range []prometheus.Collector{m.RequestsTotal, m.RequestDuration, m.TokenRefreshes} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register fcm metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) observeRequest(api APIVersion, op string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.RequestsTotal.WithLabelValues(string(api), op, status).Inc()
	m.RequestDuration.WithLabelValues(string(api), op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeRefresh(err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.TokenRefreshes.WithLabelValues(status).Inc()
}
