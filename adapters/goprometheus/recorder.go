package goprometheus

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/goliatone/go-channels/core"

	"github.com/prometheus/client_golang/prometheus"
)

const defaultNamespace = "whatsapp"

// Labels kept on every series. Tags outside this set, channel_id included,
// are dropped to bound cardinality.
var recorderLabels = []string{"operation", "status", "provider", "job_id", "outcome"}

// Recorder implements core.MetricsRecorder on a prometheus registerer.
// Vectors are created on first use of each metric name.
type Recorder struct {
	namespace  string
	registerer prometheus.Registerer
	buckets    []float64

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

type Option func(*Recorder)

func WithNamespace(namespace string) Option {
	return func(r *Recorder) {
		if namespace = sanitizeName(namespace); namespace != "" {
			r.namespace = namespace
		}
	}
}

// WithBuckets overrides the histogram buckets, in milliseconds.
func WithBuckets(buckets []float64) Option {
	return func(r *Recorder) {
		if len(buckets) > 0 {
			r.buckets = append([]float64(nil), buckets...)
		}
	}
}

func NewRecorder(registerer prometheus.Registerer, opts ...Option) *Recorder {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		namespace:  defaultNamespace,
		registerer: registerer,
		buckets:    prometheus.ExponentialBuckets(5, 2, 12),
		counters:   map[string]*prometheus.CounterVec{},
		histograms: map[string]*prometheus.HistogramVec{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Recorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value < 0 {
		return
	}
	vec := r.counter(name)
	if vec == nil {
		return
	}
	vec.With(labelValues(tags)).Add(float64(value))
}

func (r *Recorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	vec := r.histogram(name)
	if vec == nil {
		return
	}
	vec.With(labelValues(tags)).Observe(value)
}

func (r *Recorder) counter(name string) *prometheus.CounterVec {
	name = sanitizeName(name)
	if name == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if vec, ok := r.counters[name]; ok {
		return vec
	}
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Name:      name,
		Help:      "WhatsApp channel counter " + name + ".",
	}, recorderLabels)
	if err := r.registerer.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil
		}
		vec = existing
	}
	r.counters[name] = vec
	return vec
}

func (r *Recorder) histogram(name string) *prometheus.HistogramVec {
	name = sanitizeName(name)
	if name == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if vec, ok := r.histograms[name]; ok {
		return vec
	}
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Name:      name,
		Help:      "WhatsApp channel histogram " + name + ".",
		Buckets:   r.buckets,
	}, recorderLabels)
	if err := r.registerer.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil
		}
		existing, ok := already.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return nil
		}
		vec = existing
	}
	r.histograms[name] = vec
	return vec
}

func labelValues(tags map[string]string) prometheus.Labels {
	labels := make(prometheus.Labels, len(recorderLabels))
	for _, key := range recorderLabels {
		labels[key] = strings.TrimSpace(tags[key])
	}
	return labels
}

// sanitizeName maps dotted metric names like channels.send_message.total
// onto the prometheus charset.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "channels.")
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "_")
	if out != "" && out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return out
}

var _ core.MetricsRecorder = (*Recorder)(nil)
