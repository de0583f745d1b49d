package metrics

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lifi"

// Exporter exposes a Collector to Prometheus. Values are read from a fresh
// Snapshot on every scrape.
type Exporter struct {
	collector *Collector

	counters []counterDesc
	rejected *prometheus.Desc
}

type counterDesc struct {
	desc  *prometheus.Desc
	value func(Snapshot) int64
}

// NewExporter creates an Exporter over c. Dimensions become constant labels.
func NewExporter(c *Collector) *Exporter {
	snap := c.Snapshot()
	labels := prometheus.Labels{
		"receiver_id":  snap.ReceiverID,
		"source":       snap.Source,
		"sink_backend": snap.SinkBackend,
	}
	counter := func(subsystem, name, help string, value func(Snapshot) int64) counterDesc {
		return counterDesc{
			desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, nil, labels),
			value: value,
		}
	}

	return &Exporter{
		collector: c,
		counters: []counterDesc{
			counter("receiver", "tokens_observed_total", "Tokens read from the capture source",
				func(s Snapshot) int64 { return s.TokensObserved }),
			counter("receiver", "tokens_duplicate_total", "Tokens dropped as repeats of the previous token",
				func(s Snapshot) int64 { return s.TokensDuplicate }),
			counter("receiver", "session_mismatch_total", "Packets ignored because they belong to another file",
				func(s Snapshot) int64 { return s.SessionMismatch }),
			counter("receiver", "chunks_applied_total", "Chunks stored for the first time",
				func(s Snapshot) int64 { return s.ChunksApplied }),
			counter("receiver", "chunks_redundant_total", "Chunks received again after being stored",
				func(s Snapshot) int64 { return s.ChunksRedundant }),
			counter("receiver", "sessions_started_total", "Sessions bound to a file",
				func(s Snapshot) int64 { return s.SessionsStarted }),
			counter("receiver", "sessions_complete_total", "Sessions that received every chunk",
				func(s Snapshot) int64 { return s.SessionsComplete }),
			counter("receiver", "resets_total", "Receiver resets",
				func(s Snapshot) int64 { return s.Resets }),
			counter("sink", "saves_succeeded_total", "Files saved",
				func(s Snapshot) int64 { return s.SavesSucceeded }),
			counter("sink", "saves_failed_total", "File saves that failed",
				func(s Snapshot) int64 { return s.SavesFailed }),
			counter("adapter", "publish_failures_total", "Completion events that could not be published",
				func(s Snapshot) int64 { return s.PublishFailures }),
		},
		rejected: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "receiver", "tokens_rejected_total"),
			"Tokens that failed to parse, by error kind",
			[]string{"kind"}, labels,
		),
	}
}

// Describe implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range e.counters {
		ch <- c.desc
	}
	ch <- e.rejected
}

// Collect implements prometheus.Collector.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	snap := e.collector.Snapshot()
	for _, c := range e.counters {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(c.value(snap)))
	}

	kinds := make([]string, 0, len(snap.RejectedByKind))
	for k := range snap.RejectedByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		ch <- prometheus.MustNewConstMetric(e.rejected, prometheus.CounterValue, float64(snap.RejectedByKind[k]), k)
	}
}

var _ prometheus.Collector = (*Exporter)(nil)

// Handler returns an http.Handler serving c in the Prometheus text format.
// Each handler uses its own registry so tests and multiple receivers do not collide.
func Handler(c *Collector) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewExporter(c))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Serve exposes c on addr at /metrics until ctx is canceled.
func Serve(ctx context.Context, addr string, c *Collector) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(c))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
