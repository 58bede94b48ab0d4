package infection

import "github.com/prometheus/client_golang/prometheus"

// Metrics collects traversal and infection statistics. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	rounds        prometheus.Counter
	stamped       *prometheus.CounterVec
	rejections    prometheus.Counter
	componentSize prometheus.Histogram
}

// NewMetrics creates the infection collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "infection",
			Name:      "rounds_total",
			Help:      "Number of batched neighbor queries issued against the store.",
		}),
		stamped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "infection",
			Name:      "users_stamped_total",
			Help:      "Number of users handed to a bulk version update.",
		}, []string{"policy"}),
		rejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "infection",
			Name:      "range_rejections_total",
			Help:      "Number of range-bounded infections rejected for exceeding the maximum.",
		}),
		componentSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "infection",
			Name:      "component_size",
			Help:      "Size of discovered connected components.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
	}
	reg.MustRegister(m.rounds, m.stamped, m.rejections, m.componentSize)
	return m
}

func (m *Metrics) observeRound() {
	if m == nil {
		return
	}
	m.rounds.Inc()
}

func (m *Metrics) observeComponent(size int) {
	if m == nil {
		return
	}
	m.componentSize.Observe(float64(size))
}

func (m *Metrics) observeStamp(policy string, users int) {
	if m == nil {
		return
	}
	m.stamped.WithLabelValues(policy).Add(float64(users))
}

func (m *Metrics) observeRejection() {
	if m == nil {
		return
	}
	m.rejections.Inc()
}
