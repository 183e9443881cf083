package controllers

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	dbchainControllerReconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbchain_controller_reconcile_total",
			Help: "Number of reconciliations by controller.",
		},
		[]string{"controller"},
	)
	dbchainControllerReconcileErrorTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbchain_controller_reconcile_error_total",
			Help: "Number of reconciliation errors by controller.",
		},
		[]string{"controller"},
	)

	planningDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dbchain_planning_duration_seconds",
			Help:    "Time taken to plan a DatabaseDeployment.",
			Buckets: prometheus.DefBuckets,
		},
	)

	plannedStepGroups = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dbchain_planned_step_groups",
			Help: "Number of step groups in the last plan of a DatabaseDeployment.",
		},
		[]string{"namespace", "name"},
	)
	skippedDependencies = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dbchain_skipped_dependencies",
			Help: "Number of unresolved optional or soft dependencies in the last plan of a DatabaseDeployment.",
		},
		[]string{"namespace", "name"},
	)

	planPublishedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dbchain_plan_published_total",
			Help: "Total number of plans published to the event bus.",
		},
	)
	planPublishErrorTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dbchain_plan_publish_error_total",
			Help: "Total number of failed plan publications.",
		},
	)
)

func init() {
	metrics.Registry.MustRegister(
		dbchainControllerReconcileTotal,
		dbchainControllerReconcileErrorTotal,
		planningDuration,
		plannedStepGroups,
		skippedDependencies,
		planPublishedTotal,
		planPublishErrorTotal,
	)
}

func forgetDeploymentMetrics(namespace, name string) {
	plannedStepGroups.DeleteLabelValues(namespace, name)
	skippedDependencies.DeleteLabelValues(namespace, name)
}
