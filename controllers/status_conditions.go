package controllers

import (
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	dbchainv1alpha1 "github.com/bayleafwalker/dbchain/api/v1alpha1"
)

const (
	ConditionPlanResolved  = "PlanResolved"
	ConditionPlanPublished = "PlanPublished"
)

func setDeploymentCondition(dd *dbchainv1alpha1.DatabaseDeployment, condition metav1.Condition) {
	if dd == nil {
		return
	}
	condition.ObservedGeneration = dd.Generation
	meta.SetStatusCondition(&dd.Status.Conditions, condition)
}
