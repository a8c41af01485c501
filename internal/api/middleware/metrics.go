package middleware

import (
	"net/http"

	"github.com/clinicore/clinicore/internal/metrics"
)

// InFlight is middleware that tracks the number of requests currently being
// served.
func InFlight(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()
			next.ServeHTTP(w, r)
		})
	}
}
