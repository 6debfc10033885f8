// Package metrics exposes Prometheus instruments for the server's HTTP and
// database layers and the client's query cache and optimistic writes.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "portal"

type routeKey struct{}

// routeLabel is filled in once chi has matched the request, so instruments
// observed deeper in the stack can read the final pattern.
type routeLabel struct {
	pattern string
}

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status class.",
	}, []string{"method", "route", "class"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	dbDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "db",
		Name:      "operation_duration_seconds",
		Help:      "Database operation latency by repository operation and outcome.",
		Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"operation", "route", "outcome"})

	cacheReads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "reads_total",
		Help:      "Query cache reads by query name and result.",
	}, []string{"query", "result"})

	mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "optimistic",
		Name:      "mutations_total",
		Help:      "Optimistic mutations by query, kind and terminal state.",
	}, []string{"query", "kind", "outcome"})

	mutationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "optimistic",
		Name:      "mutation_duration_seconds",
		Help:      "Time from optimistic patch to confirmation or rollback.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"query", "kind"})
)

// Middleware counts and times requests by their chi route pattern.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			label := &routeLabel{}
			ctx := context.WithValue(r.Context(), routeKey{}, label)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r.WithContext(ctx))

			route := label.resolve(r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			httpRequests.WithLabelValues(r.Method, route, statusClass(status)).Inc()
			httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

func (l *routeLabel) resolve(r *http.Request) string {
	if l.pattern == "" {
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			l.pattern = rctx.RoutePattern()
		}
	}
	if l.pattern == "" {
		l.pattern = "unmatched"
	}
	return l.pattern
}

func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDB records a repository operation. Inside a request the route is
// taken from the context.
func ObserveDB(ctx context.Context, operation string, start time.Time, err error) {
	route := "none"
	if label, ok := ctx.Value(routeKey{}).(*routeLabel); ok {
		if rctx := chi.RouteContext(ctx); rctx != nil && rctx.RoutePattern() != "" {
			label.pattern = rctx.RoutePattern()
		}
		if label.pattern != "" {
			route = label.pattern
		}
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	dbDuration.WithLabelValues(operation, route, outcome).Observe(time.Since(start).Seconds())
}

// ObserveCacheRead counts a query cache lookup.
func ObserveCacheRead(query string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheReads.WithLabelValues(query, result).Inc()
}

// ObserveMutation records the terminal state of an optimistic mutation.
func ObserveMutation(query, kind, outcome string, start time.Time) {
	mutations.WithLabelValues(query, kind, outcome).Inc()
	mutationDuration.WithLabelValues(query, kind).Observe(time.Since(start).Seconds())
}
