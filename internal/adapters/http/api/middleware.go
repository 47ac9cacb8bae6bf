package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/huecast/pkg/metrics"
)

// MetricsMiddleware records request count, latency and error class for
// every call to next under the endpoint label.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		code := rec.status()
		status := strconv.Itoa(code)
		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status,
			float64(time.Since(start).Microseconds())/1000)

		if class, failed := errorClass(code); failed {
			metrics.RecordErrorByComponent("http", class)
		}
	}
}

// errorClass buckets a response code for the errors_total metric.
// Codes below 400 are not errors.
func errorClass(code int) (string, bool) {
	switch {
	case code < http.StatusBadRequest:
		return "", false
	case code == http.StatusServiceUnavailable:
		return "unavailable", true
	case code >= http.StatusInternalServerError:
		return "server_error", true
	case code == http.StatusTooManyRequests:
		return "rate_limit", true
	case code == http.StatusNotFound:
		return "not_found", true
	case code == http.StatusMethodNotAllowed:
		return "method_not_allowed", true
	default:
		return "client_error", true
	}
}

// statusRecorder remembers the first status written. A handler that only
// calls Write gets the implicit 200.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (rec *statusRecorder) status() int {
	if rec.code == 0 {
		return http.StatusOK
	}
	return rec.code
}

func (rec *statusRecorder) WriteHeader(code int) {
	if rec.code == 0 {
		rec.code = code
	}
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	if rec.code == 0 {
		rec.code = http.StatusOK
	}
	n, err := rec.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}
