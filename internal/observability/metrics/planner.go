package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jortvara/caesync/internal/core/domain"
)

// PlannerMetrics covers the whole requirement-to-plan pipeline: batches
// consumed, match outcomes, plan builds and the uploads executed from them.
// A private registry keeps the scrape surface to exactly what we register.
type PlannerMetrics struct {
	registry *prometheus.Registry

	batchesTotal  *prometheus.CounterVec
	matchOutcomes *prometheus.CounterVec
	plansTotal    *prometheus.CounterVec
	planItems     *prometheus.CounterVec
	planDuration  prometheus.Histogram
	uploadsTotal  *prometheus.CounterVec
	plansInFlight prometheus.Gauge
}

func NewPlannerMetrics(service string) *PlannerMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	batchesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "caesync",
			Subsystem:   "planner",
			Name:        "requirement_batches_total",
			Help:        "Requirement batches consumed, by platform and result.",
			ConstLabels: constLabels,
		},
		[]string{"platform", "result"},
	)
	matchOutcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "caesync",
			Subsystem:   "planner",
			Name:        "match_outcomes_total",
			Help:        "Match outcomes, by primary reason (matched when conclusive).",
			ConstLabels: constLabels,
		},
		[]string{"reason"},
	)
	plansTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "caesync",
			Subsystem:   "planner",
			Name:        "plans_built_total",
			Help:        "Frozen plans built, by verdict.",
			ConstLabels: constLabels,
		},
		[]string{"verdict"},
	)
	planItems := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "caesync",
			Subsystem:   "planner",
			Name:        "plan_items_total",
			Help:        "Plan items produced, by decision kind and reason.",
			ConstLabels: constLabels,
		},
		[]string{"kind", "reason"},
	)
	planDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "caesync",
			Subsystem:   "planner",
			Name:        "plan_build_duration_seconds",
			Help:        "Plan build duration in seconds.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
	)
	uploadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "caesync",
			Subsystem:   "executor",
			Name:        "uploads_total",
			Help:        "Plan item uploads executed, by result.",
			ConstLabels: constLabels,
		},
		[]string{"result"},
	)
	plansInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "caesync",
			Subsystem:   "planner",
			Name:        "plan_builds_in_flight",
			Help:        "Number of in-flight plan builds.",
			ConstLabels: constLabels,
		},
	)

	registry.MustRegister(batchesTotal, matchOutcomes, plansTotal, planItems, planDuration, uploadsTotal, plansInFlight)

	return &PlannerMetrics{
		registry:      registry,
		batchesTotal:  batchesTotal,
		matchOutcomes: matchOutcomes,
		plansTotal:    plansTotal,
		planItems:     planItems,
		planDuration:  planDuration,
		uploadsTotal:  uploadsTotal,
		plansInFlight: plansInFlight,
	}
}

func (m *PlannerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PlannerMetrics) ObserveBatch(platform string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.batchesTotal.WithLabelValues(platform, result).Inc()
}

func (m *PlannerMetrics) ObserveMatch(report *domain.MatchDebugReport) {
	if report == nil {
		m.matchOutcomes.WithLabelValues("matched").Inc()
		return
	}
	m.matchOutcomes.WithLabelValues(string(report.Outcome.PrimaryReasonCode)).Inc()
}

func (m *PlannerMetrics) StartPlanBuild() func(*domain.Plan, error) {
	m.plansInFlight.Inc()
	start := time.Now()
	return func(plan *domain.Plan, err error) {
		m.plansInFlight.Dec()
		m.planDuration.Observe(time.Since(start).Seconds())
		if err != nil || plan == nil {
			m.plansTotal.WithLabelValues("failed").Inc()
			return
		}
		m.plansTotal.WithLabelValues(string(plan.Verdict)).Inc()
		for _, item := range plan.Items {
			m.planItems.WithLabelValues(string(item.Decision.Kind), string(item.Decision.ReasonCode)).Inc()
		}
	}
}

func (m *PlannerMetrics) ObserveUpload(receipt domain.UploadReceipt, err error) {
	switch {
	case err != nil:
		m.uploadsTotal.WithLabelValues("error").Inc()
	case receipt.Success:
		m.uploadsTotal.WithLabelValues("success").Inc()
	default:
		m.uploadsTotal.WithLabelValues("rejected").Inc()
	}
}
