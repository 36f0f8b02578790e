package metrics

import "github.com/prometheus/client_golang/prometheus"

// ChatMetrics exposes counters/histograms for chat sessions and lead capture.
type ChatMetrics struct {
	turnsTotal       *prometheus.CounterVec
	directivesTotal  *prometheus.CounterVec
	fallbackTotal    *prometheus.CounterVec
	leadsTotal       *prometheus.CounterVec
	idleNudges       prometheus.Counter
	activeSessions   prometheus.Gauge
	assistantLatency *prometheus.HistogramVec
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadchat",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "User turns by origin (typed, prompt) and outcome",
		}, []string{"origin", "outcome"}),
		directivesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadchat",
			Subsystem: "chat",
			Name:      "directives_total",
			Help:      "Contact form directives by kind (params, bare, affirmation)",
		}, []string{"kind"}),
		fallbackTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadchat",
			Subsystem: "chat",
			Name:      "fallback_extractions_total",
			Help:      "Calls to /api/extract-info by result",
		}, []string{"status"}),
		leadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadchat",
			Subsystem: "leads",
			Name:      "submissions_total",
			Help:      "Lead submissions from chat sessions by result",
		}, []string{"status"}),
		idleNudges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "leadchat",
			Subsystem: "chat",
			Name:      "idle_nudges_total",
			Help:      "Idle nudges appended to transcripts",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "leadchat",
			Subsystem: "chat",
			Name:      "active_sessions",
			Help:      "Sessions currently held in memory",
		}),
		assistantLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "leadchat",
			Subsystem: "assistant",
			Name:      "request_latency_seconds",
			Help:      "Latency of assistant backend calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.directivesTotal, m.fallbackTotal, m.leadsTotal, m.idleNudges, m.activeSessions, m.assistantLatency)
	return m
}

func (m *ChatMetrics) ObserveTurn(origin, outcome string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(origin, outcome).Inc()
}

func (m *ChatMetrics) ObserveDirective(kind string) {
	if m == nil {
		return
	}
	m.directivesTotal.WithLabelValues(kind).Inc()
}

func (m *ChatMetrics) ObserveFallback(status string) {
	if m == nil {
		return
	}
	m.fallbackTotal.WithLabelValues(status).Inc()
}

func (m *ChatMetrics) ObserveLeadSubmission(status string) {
	if m == nil {
		return
	}
	m.leadsTotal.WithLabelValues(status).Inc()
}

func (m *ChatMetrics) ObserveIdleNudge() {
	if m == nil {
		return
	}
	m.idleNudges.Inc()
}

func (m *ChatMetrics) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

func (m *ChatMetrics) SessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

func (m *ChatMetrics) ObserveAssistantLatency(endpoint string, seconds float64) {
	if m == nil {
		return
	}
	m.assistantLatency.WithLabelValues(endpoint).Observe(seconds)
}
