package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OtherRoute labels requests whose path is not a registered route, so
// scanners probing random paths cannot grow label cardinality.
const OtherRoute = "other"

// MetricsMiddleware records RequestsTotal, RequestDuration and
// RequestsInFlight for every request. routes are the paths that get their
// own route label.
func MetricsMiddleware(routes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		byRoute := make(map[string]http.Handler, len(routes)+1)
		for _, route := range append([]string{OtherRoute}, routes...) {
			byRoute[route] = instrument(route, next)
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h, ok := byRoute[r.URL.Path]
			if !ok {
				h = byRoute[OtherRoute]
			}
			h.ServeHTTP(w, r)
		})
	}
}

func instrument(route string, next http.Handler) http.Handler {
	labels := prometheus.Labels{"route": route}
	return promhttp.InstrumentHandlerInFlight(RequestsInFlight,
		promhttp.InstrumentHandlerDuration(RequestDuration.MustCurryWith(labels),
			promhttp.InstrumentHandlerCounter(RequestsTotal.MustCurryWith(labels), next),
		),
	)
}
