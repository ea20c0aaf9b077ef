// Package promutil contains utilities for collecting Prometheus metrics.
package promutil

import (
	"net/http"
	"time"

	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	inFlightMetric = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "http_client_in_flight_requests",
		Help: "A gauge of in-flight requests being made against an HTTP API, by client.",
	}, []string{"client"})

	requestCountMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_client_requests_total",
		Help: "A summary of requests made against an HTTP API, by client, status code, and request method.",
	}, []string{"client", "code", "method"})

	requestTimeMetric = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_client_request_duration_seconds",
		Help:    "A histogram of request timing against an HTTP API, by client and request method.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.1, 1, 10, 30, 60, 300, 600},
	}, []string{"client", "method"})
)

type loggingRT struct {
	name       string
	underlying http.RoundTripper
}

func (rt *loggingRT) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	l := zap.L().With(
		zap.String("name", rt.name),
		zap.String("method", req.Method),
		zap.String("uri", req.URL.String()))

	// Log the start of long HTTP requests.
	timer := time.AfterFunc(10*time.Second, func() {
		l.Info("ongoing long http request", zap.Duration("duration", time.Since(start)))
	})
	defer timer.Stop()

	res, err := rt.underlying.RoundTrip(req)
	if err != nil {
		l.Info("outgoing http request completed with error", zap.Error(err))
		return res, errors.EnsureStack(err)
	}
	l.Debug("outgoing http request complete",
		zap.Duration("duration", time.Since(start)),
		zap.String("status", res.Status))
	return res, nil
}

// InstrumentRoundTripper returns an http.RoundTripper that collects
// Prometheus metrics, delegating to the underlying RoundTripper to actually
// make requests.
func InstrumentRoundTripper(name string, rt http.RoundTripper) http.RoundTripper {
	if rt == nil {
		rt = http.DefaultTransport
	}
	ls := prometheus.Labels{"client": name}
	return promhttp.InstrumentRoundTripperInFlight(
		inFlightMetric.With(ls),
		promhttp.InstrumentRoundTripperDuration(
			requestTimeMetric.MustCurryWith(ls),
			promhttp.InstrumentRoundTripperCounter(
				requestCountMetric.MustCurryWith(ls),
				&loggingRT{name: name, underlying: rt})))
}
