package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "trace_"

	// ResultSuccess labels a capture that produced a report.
	ResultSuccess = "success"
	// ResultError labels a capture that failed a precondition.
	ResultError = "error"
)

// Recorder bundles batch analysis metrics on a private registry so several
// batches in one process never collide.
type Recorder struct {
	registry *prometheus.Registry

	FilesTotal      *prometheus.CounterVec
	FileDuration    prometheus.Histogram
	AlignmentOffset *prometheus.GaugeVec
	SamplesFiltered prometheus.Counter
	EventsTotal     *prometheus.CounterVec
}

// New constructs and registers the batch metrics.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		FilesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "files_total",
				Help: "Total analyzed capture files by experiment and result",
			},
			[]string{"experiment", "result"},
		),
		FileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricPrefix + "file_duration_seconds",
			Help:    "Wall time spent analyzing one capture file",
			Buckets: prometheus.DefBuckets,
		}),
		AlignmentOffset: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "alignment_offset_samples",
				Help: "Sample index of the sync marker in the last capture of each node",
			},
			[]string{"node"},
		),
		SamplesFiltered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "samples_filtered_total",
			Help: "Total samples dropped as out of range",
		}),
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "events_total",
				Help: "Total integrated events by experiment",
			},
			[]string{"experiment"},
		),
	}
	r.registry.MustRegister(
		r.FilesTotal,
		r.FileDuration,
		r.AlignmentOffset,
		r.SamplesFiltered,
		r.EventsTotal,
	)
	return r
}

// Registry exposes the underlying registry for gathering.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// FileOutcome describes one analyzed capture.
type FileOutcome struct {
	Experiment string
	Node       int
	Err        error
	Duration   time.Duration
	Offset     int
	Filtered   int
	Events     int
}

// ObserveFile records one capture. A nil Recorder is a no-op.
func (r *Recorder) ObserveFile(o FileOutcome) {
	if r == nil {
		return
	}
	result := ResultSuccess
	if o.Err != nil {
		result = ResultError
	}
	r.FilesTotal.WithLabelValues(o.Experiment, result).Inc()
	r.FileDuration.Observe(o.Duration.Seconds())
	if o.Err != nil {
		return
	}
	r.AlignmentOffset.WithLabelValues(strconv.Itoa(o.Node)).Set(float64(o.Offset))
	r.SamplesFiltered.Add(float64(o.Filtered))
	r.EventsTotal.WithLabelValues(o.Experiment).Add(float64(o.Events))
}

// WriteTextfile writes the current values in the node exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
