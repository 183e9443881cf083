package v1alpha1

import (
	"testing"

	"k8s.io/apimachinery/pkg/api/equality"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func TestDatabaseDeployment_DeepCopyIsIndependent(t *testing.T) {
	in := &DatabaseDeployment{
		ObjectMeta: metav1.ObjectMeta{Name: "shop", Namespace: "prod", Labels: map[string]string{"team": "orders"}},
		Spec: DatabaseDeploymentSpec{
			ScriptPaths:  []string{"/scripts"},
			ServiceUsers: []string{"app"},
			Databases:    []DatabaseTarget{{Name: "Orders", TargetVersion: "2.0", Schemas: []string{"Core"}}},
		},
		Status: DatabaseDeploymentStatus{
			Phase:               PhasePlanned,
			Conditions:          []metav1.Condition{{Type: "PlanResolved", Status: metav1.ConditionTrue}},
			PlanConfigMap:       &ObjectRef{Name: "shop-plan"},
			Steps:               []PlannedStep{{Database: "Orders", Description: "Orders (not installed)"}},
			Databases:           []DatabaseStatus{{Name: "Orders", TargetVersion: "2.0", Schemas: []string{"Core"}}},
			SkippedDependencies: []string{"Orders 2.0: optional dependency on Search [*, *]"},
		},
	}
	out := in.DeepCopy()
	if !equality.Semantic.DeepEqual(in, out) {
		t.Fatalf("copy differs:\n%+v\n%+v", in, out)
	}

	out.Labels["team"] = "billing"
	out.Spec.ScriptPaths[0] = "/other"
	out.Spec.Databases[0].Schemas[0] = "Audit"
	out.Status.Conditions[0].Status = metav1.ConditionFalse
	out.Status.PlanConfigMap.Name = "other"
	out.Status.Steps[0].Description = "changed"
	out.Status.Databases[0].Schemas[0] = "Audit"
	out.Status.SkippedDependencies[0] = "changed"

	if in.Labels["team"] != "orders" ||
		in.Spec.ScriptPaths[0] != "/scripts" ||
		in.Spec.Databases[0].Schemas[0] != "Core" ||
		in.Status.Conditions[0].Status != metav1.ConditionTrue ||
		in.Status.PlanConfigMap.Name != "shop-plan" ||
		in.Status.Steps[0].Description != "Orders (not installed)" ||
		in.Status.Databases[0].Schemas[0] != "Core" ||
		in.Status.SkippedDependencies[0] == "changed" {
		t.Fatalf("mutating the copy changed the original: %+v", in)
	}
}

func TestDatabaseDeploymentList_DeepCopyObject(t *testing.T) {
	in := &DatabaseDeploymentList{Items: []DatabaseDeployment{{ObjectMeta: metav1.ObjectMeta{Name: "a"}}}}
	obj := in.DeepCopyObject()
	out, ok := obj.(*DatabaseDeploymentList)
	if !ok {
		t.Fatalf("unexpected type %T", obj)
	}
	out.Items[0].Name = "b"
	if in.Items[0].Name != "a" {
		t.Fatalf("list items are shared")
	}
	var nilList *DatabaseDeploymentList
	if nilList.DeepCopy() != nil {
		t.Fatalf("nil list must copy to nil")
	}
}
