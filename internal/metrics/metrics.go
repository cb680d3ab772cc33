package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	Allocations     prometheus.Counter
	Deallocations   prometheus.Counter
	OutOfStock      prometheus.Counter
	LockContention  prometheus.Counter
	SaveConflicts   prometheus.Counter
	AllocateLatency prometheus.Histogram

	EventsPublished prometheus.Counter
	EventsFailed    prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	allocations := prometheus.NewCounter(prometheus.CounterOpts{Name: "allocation_allocations_total"})
	deallocations := prometheus.NewCounter(prometheus.CounterOpts{Name: "allocation_deallocations_total"})
	outOfStock := prometheus.NewCounter(prometheus.CounterOpts{Name: "allocation_out_of_stock_total"})
	lockContention := prometheus.NewCounter(prometheus.CounterOpts{Name: "allocation_lock_contention_total"})
	saveConflicts := prometheus.NewCounter(prometheus.CounterOpts{Name: "allocation_save_conflicts_total"})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "allocation_allocate_latency_seconds",
		Buckets: prometheus.DefBuckets,
	})
	published := prometheus.NewCounter(prometheus.CounterOpts{Name: "allocation_events_published_total"})
	failed := prometheus.NewCounter(prometheus.CounterOpts{Name: "allocation_events_failed_total"})

	r.MustRegister(allocations, deallocations, outOfStock, lockContention, saveConflicts, latency, published, failed)
	return &Registry{
		reg:             r,
		Allocations:     allocations,
		Deallocations:   deallocations,
		OutOfStock:      outOfStock,
		LockContention:  lockContention,
		SaveConflicts:   saveConflicts,
		AllocateLatency: latency,
		EventsPublished: published,
		EventsFailed:    failed,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
