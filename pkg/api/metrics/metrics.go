// Package metrics holds the service's prometheus collectors.
package metrics

import (
	"net/http"
	"runtime"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	Requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timecapsule_http_requests_total",
			Help: "HTTP requests by route pattern and status code.",
		},
		[]string{"method", "route", "code"},
	)

	CapsulesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timecapsule_capsules_created_total",
			Help: "Capsules created by kind.",
		},
		[]string{"kind"},
	)

	EntriesCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "timecapsule_entries_created_total",
			Help: "Entries appended to collaborative capsules.",
		},
	)

	MembersNotFound = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "timecapsule_members_not_found_total",
			Help: "Proposed collaborators without a registered account.",
		},
	)

	Uploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timecapsule_uploads_total",
			Help: "Media uploads by outcome.",
		},
		[]string{"result"},
	)

	UnlockSweeps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timecapsule_unlock_items_total",
			Help: "Items announced as unlocked by admin-triggered sweeps.",
		},
		[]string{"kind"},
	)

	heapAlloc = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "go_heap_alloc_bytes",
			Help: "Current heap allocation in bytes.",
		},
		func() float64 {
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			return float64(stats.HeapAlloc)
		},
	)

	gcPauseTotal = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "go_gc_pause_total_ns",
			Help: "Total GC pause time in nanoseconds.",
		},
		func() float64 {
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			return float64(stats.PauseTotalNs)
		},
	)
)

func init() {
	prometheus.MustRegister(Requests, CapsulesCreated, EntriesCreated, MembersNotFound, Uploads, UnlockSweeps)
	prometheus.MustRegister(heapAlloc, gcPauseTotal)
}

// Observe records a finished request.
func Observe(method, route string, code int) {
	Requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
}

// Handler exposes the default registry on a fasthttp route.
func Handler() fasthttp.RequestHandler {
	return wrapHTTPHandler(promhttp.Handler())
}

func wrapHTTPHandler(h http.Handler) fasthttp.RequestHandler {
	return fasthttpadaptor.NewFastHTTPHandler(h)
}
