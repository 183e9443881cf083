package controllers

import (
	"context"
	"errors"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/tools/record"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/yaml"

	dbchainv1alpha1 "github.com/bayleafwalker/dbchain/api/v1alpha1"
	"github.com/bayleafwalker/dbchain/internal/events"
	"github.com/bayleafwalker/dbchain/internal/manifest"
	"github.com/bayleafwalker/dbchain/internal/planner"
)

const (
	labelManagedBy  = "dbchain.platform/managed-by"
	labelDeployment = "dbchain.platform/deployment"

	managedByDatabaseDeployment = "databasedeployment"

	// PlanConfigMapSuffix is appended to the DatabaseDeployment name.
	PlanConfigMapSuffix = "-plan"
	PlanKey             = "plan.yaml"
	SummaryKey          = "summary.txt"

	eventSourceController = "databasedeployment-controller"

	publishRetryInterval = time.Minute
)

// DatabaseDeploymentReconciler plans DatabaseDeployments and stores the
// ordered step groups in an owned ConfigMap.
//
// RBAC:
// +kubebuilder:rbac:groups=dbchain.platform,resources=databasedeployments,verbs=get;list;watch
// +kubebuilder:rbac:groups=dbchain.platform,resources=databasedeployments/status,verbs=get;update;patch
// +kubebuilder:rbac:groups="",resources=configmaps,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups="",resources=events,verbs=create;patch;update
type DatabaseDeploymentReconciler struct {
	client.Client
	Scheme    *runtime.Scheme
	Planner   planner.Planner
	Publisher events.Publisher
	Recorder  record.EventRecorder
}

func (r *DatabaseDeploymentReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	dbchainControllerReconcileTotal.WithLabelValues("DatabaseDeployment").Inc()

	logger := log.FromContext(ctx).WithValues(
		"controller", "DatabaseDeployment",
		"namespace", req.Namespace,
		"deployment", req.Name,
	)

	var dd dbchainv1alpha1.DatabaseDeployment
	if err := r.Get(ctx, req.NamespacedName, &dd); err != nil {
		if client.IgnoreNotFound(err) == nil {
			forgetDeploymentMetrics(req.Namespace, req.Name)
			return ctrl.Result{}, nil
		}
		dbchainControllerReconcileErrorTotal.WithLabelValues("DatabaseDeployment").Inc()
		return ctrl.Result{}, err
	}
	logger.Info("planning deployment", "databases", len(dd.Spec.Databases))

	p := r.Planner
	if p == nil {
		p = planner.NewDefault(ctrl.Log.WithName("planner"))
	}

	start := time.Now()
	plan, err := p.Plan(ctx, manifest.PlannerInput(&dd))
	planningDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return ctrl.Result{}, err
		}
		// Not retried until the resource or its scripts change.
		logger.Info("planning failed", "reason", err.Error())
		if derr := r.deletePlanConfigMap(ctx, &dd); derr != nil {
			logger.Error(derr, "failed to delete stale plan configmap")
			dbchainControllerReconcileErrorTotal.WithLabelValues("DatabaseDeployment").Inc()
			return ctrl.Result{}, derr
		}
		if perr := r.patchDeploymentStatus(ctx, &dd, dbchainv1alpha1.PhaseError, err.Error(), clearPlanStatus,
			metav1.Condition{
				Type:    ConditionPlanResolved,
				Status:  metav1.ConditionFalse,
				Reason:  "PlanFailed",
				Message: err.Error(),
			},
			metav1.Condition{
				Type:    ConditionPlanPublished,
				Status:  metav1.ConditionFalse,
				Reason:  "PlanNotResolved",
				Message: "No plan to publish",
			},
		); perr != nil {
			logger.Error(perr, "failed to patch deployment status")
			dbchainControllerReconcileErrorTotal.WithLabelValues("DatabaseDeployment").Inc()
			return ctrl.Result{}, perr
		}
		r.recordEventf(&dd, corev1.EventTypeWarning, "PlanFailed", "Planning failed: %v", err)
		plannedStepGroups.WithLabelValues(dd.Namespace, dd.Name).Set(0)
		skippedDependencies.WithLabelValues(dd.Namespace, dd.Name).Set(0)
		return ctrl.Result{}, nil
	}

	cmName, op, err := r.ensurePlanConfigMap(ctx, &dd, plan)
	if err != nil {
		logger.Error(err, "failed to write plan configmap")
		r.recordEventf(&dd, corev1.EventTypeWarning, "WritePlanFailed", "Failed to write plan ConfigMap: %v", err)
		dbchainControllerReconcileErrorTotal.WithLabelValues("DatabaseDeployment").Inc()
		return ctrl.Result{}, err
	}
	if op != controllerutil.OperationResultNone {
		logger.Info("plan configmap written", "configMap", cmName, "operation", op)
	}

	published := r.publish(ctx, &dd, plan)
	result := ctrl.Result{}
	if published.Status == metav1.ConditionFalse && published.Reason == "PublishFailed" {
		result.RequeueAfter = publishRetryInterval
	}

	msg := fmt.Sprintf("%d step groups for %d databases", len(plan.Steps), len(plan.Databases))
	if err := r.patchDeploymentStatus(ctx, &dd, dbchainv1alpha1.PhasePlanned, msg, func(st *dbchainv1alpha1.DatabaseDeploymentStatus) {
		st.PlanConfigMap = &dbchainv1alpha1.ObjectRef{Name: cmName}
		applyPlanStatus(st, plan)
	},
		metav1.Condition{
			Type:    ConditionPlanResolved,
			Status:  metav1.ConditionTrue,
			Reason:  "Planned",
			Message: msg,
		},
		published,
	); err != nil {
		logger.Error(err, "failed to patch deployment status")
		dbchainControllerReconcileErrorTotal.WithLabelValues("DatabaseDeployment").Inc()
		return ctrl.Result{}, err
	}

	plannedStepGroups.WithLabelValues(dd.Namespace, dd.Name).Set(float64(len(plan.Steps)))
	skippedDependencies.WithLabelValues(dd.Namespace, dd.Name).Set(float64(len(plan.Diagnostics.SkippedDependencies)))
	r.recordEventf(&dd, corev1.EventTypeNormal, "Planned", "Planned %s", msg)
	return result, nil
}

func applyPlanStatus(st *dbchainv1alpha1.DatabaseDeploymentStatus, plan planner.Plan) {
	st.StepCount = int32(len(plan.Steps))
	st.Steps = make([]dbchainv1alpha1.PlannedStep, 0, len(plan.Steps))
	for _, s := range plan.Steps {
		st.Steps = append(st.Steps, dbchainv1alpha1.PlannedStep{
			Database:    s.Database,
			Version:     s.Version,
			Description: s.Description,
		})
	}
	st.Databases = make([]dbchainv1alpha1.DatabaseStatus, 0, len(plan.Databases))
	for _, db := range plan.Databases {
		st.Databases = append(st.Databases, dbchainv1alpha1.DatabaseStatus{
			Name:          db.Name,
			TargetVersion: db.TargetVersion,
			Schemas:       db.Schemas,
		})
	}
	st.SkippedDependencies = nil
	for _, s := range plan.Diagnostics.SkippedDependencies {
		st.SkippedDependencies = append(st.SkippedDependencies, s.Group+": "+s.Dependency)
	}
}

func clearPlanStatus(st *dbchainv1alpha1.DatabaseDeploymentStatus) {
	st.PlanConfigMap = nil
	st.StepCount = 0
	st.Steps = nil
	st.Databases = nil
	st.SkippedDependencies = nil
}

// deletePlanConfigMap removes the plan ConfigMap if this deployment controls
// it. A ConfigMap owned by something else is left alone.
func (r *DatabaseDeploymentReconciler) deletePlanConfigMap(ctx context.Context, dd *dbchainv1alpha1.DatabaseDeployment) error {
	var cm corev1.ConfigMap
	key := client.ObjectKey{Namespace: dd.Namespace, Name: dd.Name + PlanConfigMapSuffix}
	if err := r.Get(ctx, key, &cm); err != nil {
		return client.IgnoreNotFound(err)
	}
	if !metav1.IsControlledBy(&cm, dd) {
		return nil
	}
	if err := r.Delete(ctx, &cm); err != nil {
		return client.IgnoreNotFound(err)
	}
	log.FromContext(ctx).Info("deleted stale plan configmap", "configMap", cm.Name)
	return nil
}

func (r *DatabaseDeploymentReconciler) ensurePlanConfigMap(ctx context.Context, dd *dbchainv1alpha1.DatabaseDeployment, plan planner.Plan) (string, controllerutil.OperationResult, error) {
	rendered, err := yaml.Marshal(plan)
	if err != nil {
		return "", controllerutil.OperationResultNone, fmt.Errorf("render plan: %w", err)
	}

	cm := &corev1.ConfigMap{ObjectMeta: metav1.ObjectMeta{
		Namespace: dd.Namespace,
		Name:      dd.Name + PlanConfigMapSuffix,
	}}
	op, err := controllerutil.CreateOrUpdate(ctx, r.Client, cm, func() error {
		if cm.Labels == nil {
			cm.Labels = map[string]string{}
		}
		cm.Labels[labelManagedBy] = managedByDatabaseDeployment
		cm.Labels[labelDeployment] = dd.Name
		cm.Data = map[string]string{
			PlanKey:    string(rendered),
			SummaryKey: plan.Summary(),
		}
		return controllerutil.SetControllerReference(dd, cm, r.Scheme)
	})
	if err != nil {
		return "", op, err
	}
	return cm.Name, op, nil
}

// publish sends the plan to the event bus and returns the resulting
// PlanPublished condition.
func (r *DatabaseDeploymentReconciler) publish(ctx context.Context, dd *dbchainv1alpha1.DatabaseDeployment, plan planner.Plan) metav1.Condition {
	if !dd.Spec.PublishPlan {
		return metav1.Condition{
			Type:    ConditionPlanPublished,
			Status:  metav1.ConditionFalse,
			Reason:  "PublishingDisabled",
			Message: "spec.publishPlan is false",
		}
	}
	if r.Publisher == nil {
		return metav1.Condition{
			Type:    ConditionPlanPublished,
			Status:  metav1.ConditionFalse,
			Reason:  "NoEventBus",
			Message: "No event bus configured for the controller",
		}
	}

	err := events.PublishPlan(ctx, r.Publisher, events.PlanEvent{
		Source:     eventSourceController,
		Namespace:  dd.Namespace,
		Name:       dd.Name,
		Generation: dd.Generation,
		PlannedAt:  time.Now().UTC(),
		Plan:       plan,
	})
	if err != nil {
		log.FromContext(ctx).Error(err, "failed to publish plan", "subject", events.Subject(dd.Namespace, dd.Name))
		r.recordEventf(dd, corev1.EventTypeWarning, "PublishFailed", "Failed to publish plan: %v", err)
		planPublishErrorTotal.Inc()
		return metav1.Condition{
			Type:    ConditionPlanPublished,
			Status:  metav1.ConditionFalse,
			Reason:  "PublishFailed",
			Message: err.Error(),
		}
	}
	planPublishedTotal.Inc()
	return metav1.Condition{
		Type:    ConditionPlanPublished,
		Status:  metav1.ConditionTrue,
		Reason:  "Published",
		Message: "Published on " + events.Subject(dd.Namespace, dd.Name),
	}
}

func (r *DatabaseDeploymentReconciler) patchDeploymentStatus(ctx context.Context, dd *dbchainv1alpha1.DatabaseDeployment, phase dbchainv1alpha1.DeploymentPhase, message string, mutate func(*dbchainv1alpha1.DatabaseDeploymentStatus), conds ...metav1.Condition) error {
	before := dd.DeepCopy()
	dd.Status.ObservedGeneration = dd.Generation
	dd.Status.Phase = phase
	dd.Status.Message = message
	if mutate != nil {
		mutate(&dd.Status)
	}
	for _, c := range conds {
		setDeploymentCondition(dd, c)
	}
	return r.Status().Patch(ctx, dd, client.MergeFrom(before))
}

func (r *DatabaseDeploymentReconciler) recordEventf(obj client.Object, eventType, reason, messageFmt string, args ...any) {
	if r.Recorder == nil || obj == nil {
		return
	}
	r.Recorder.Eventf(obj, eventType, reason, messageFmt, args...)
}

func (r *DatabaseDeploymentReconciler) SetupWithManager(mgr ctrl.Manager) error {
	if r.Planner == nil {
		r.Planner = planner.NewDefault(ctrl.Log.WithName("planner"))
	}
	return ctrl.NewControllerManagedBy(mgr).
		For(&dbchainv1alpha1.DatabaseDeployment{}).
		Owns(&corev1.ConfigMap{}).
		Complete(r)
}
