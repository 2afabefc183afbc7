package coordinator

import "github.com/prometheus/client_golang/prometheus"

const namespace = "layzee"

// Match kinds.
const (
	matchTag    = "tag"
	matchRandom = "random"
	matchNearby = "nearby"
)

type Metrics struct {
	matches      *prometheus.CounterVec
	queue        prometheus.Gauge
	online       prometheus.Gauge
	pairs        prometheus.Gauge
	reports      prometheus.Counter
	dropped      *prometheus.CounterVec
	nearbyErrors prometheus.Counter
}

// NewMetrics makes the coordinator metrics and registers them
// with reg unless it is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "matches_total", Help: "Pairings made, by the kind of match.",
		}, []string{"kind"}),
		queue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "queue_size", Help: "Participants waiting in the queue.",
		}),
		online: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "online", Help: "Connected participants.",
		}),
		pairs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pairs", Help: "Ongoing conversations.",
		}),
		reports: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "reports_total", Help: "Abuse reports.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "relay_dropped_total", Help: "Relayed events without a live target.",
		}, []string{"event"}),
		nearbyErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "nearby_errors_total", Help: "Failed geospatial store calls.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.matches, m.queue, m.online, m.pairs, m.reports, m.dropped, m.nearbyErrors)
	}
	return m
}
