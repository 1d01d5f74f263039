package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters for availability and booking flows.
type SchedulingMetrics struct {
	slotFetchTotal   *prometheus.CounterVec
	submissionsTotal *prometheus.CounterVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		slotFetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intellagent",
			Subsystem: "scheduling",
			Name:      "slot_fetch_total",
			Help:      "Slot list resolutions by source (backend or fallback)",
		}, []string{"source"}),
		submissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intellagent",
			Subsystem: "scheduling",
			Name:      "booking_submissions_total",
			Help:      "Booking submissions by outcome",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.slotFetchTotal, m.submissionsTotal)
	return m
}

func (m *SchedulingMetrics) ObserveSlotFetch(source string) {
	if m == nil {
		return
	}
	m.slotFetchTotal.WithLabelValues(source).Inc()
}

func (m *SchedulingMetrics) ObserveSubmission(status string) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(status).Inc()
}

// AutomationMetrics exposes counters/histograms for chat-driven automation runs.
type AutomationMetrics struct {
	runsTotal        *prometheus.CounterVec
	stageTransitions *prometheus.CounterVec
	runDuration      prometheus.Histogram
}

func NewAutomationMetrics(reg prometheus.Registerer) *AutomationMetrics {
	m := &AutomationMetrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intellagent",
			Subsystem: "automation",
			Name:      "runs_total",
			Help:      "Automation runs by outcome",
		}, []string{"outcome"}),
		stageTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intellagent",
			Subsystem: "automation",
			Name:      "stage_transitions_total",
			Help:      "Automation stage transitions",
		}, []string{"stage"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "intellagent",
			Subsystem: "automation",
			Name:      "run_duration_seconds",
			Help:      "Duration of automation runs",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.runsTotal, m.stageTransitions, m.runDuration)
	return m
}

func (m *AutomationMetrics) ObserveRun(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(seconds)
}

func (m *AutomationMetrics) ObserveStage(stage string) {
	if m == nil {
		return
	}
	m.stageTransitions.WithLabelValues(stage).Inc()
}
