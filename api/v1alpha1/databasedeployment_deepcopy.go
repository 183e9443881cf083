package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *DatabaseDeployment) DeepCopyInto(out *DatabaseDeployment) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	in.Spec.DeepCopyInto(&out.Spec)
	in.Status.DeepCopyInto(&out.Status)
}

// DeepCopy copies the receiver, creating a new DatabaseDeployment.
func (in *DatabaseDeployment) DeepCopy() *DatabaseDeployment {
	if in == nil {
		return nil
	}
	out := new(DatabaseDeployment)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyObject copies the receiver, creating a new runtime.Object.
func (in *DatabaseDeployment) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *DatabaseDeploymentList) DeepCopyInto(out *DatabaseDeploymentList) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	if in.Items != nil {
		out.Items = make([]DatabaseDeployment, len(in.Items))
		for i := range in.Items {
			in.Items[i].DeepCopyInto(&out.Items[i])
		}
	}
}

// DeepCopy copies the receiver, creating a new DatabaseDeploymentList.
func (in *DatabaseDeploymentList) DeepCopy() *DatabaseDeploymentList {
	if in == nil {
		return nil
	}
	out := new(DatabaseDeploymentList)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyObject copies the receiver, creating a new runtime.Object.
func (in *DatabaseDeploymentList) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *DatabaseDeploymentSpec) DeepCopyInto(out *DatabaseDeploymentSpec) {
	*out = *in
	out.ScriptPaths = copyStrings(in.ScriptPaths)
	out.ServiceUsers = copyStrings(in.ServiceUsers)
	if in.Databases != nil {
		out.Databases = make([]DatabaseTarget, len(in.Databases))
		for i := range in.Databases {
			in.Databases[i].DeepCopyInto(&out.Databases[i])
		}
	}
}

// DeepCopy copies the receiver, creating a new DatabaseDeploymentSpec.
func (in *DatabaseDeploymentSpec) DeepCopy() *DatabaseDeploymentSpec {
	if in == nil {
		return nil
	}
	out := new(DatabaseDeploymentSpec)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *DatabaseTarget) DeepCopyInto(out *DatabaseTarget) {
	*out = *in
	out.Schemas = copyStrings(in.Schemas)
	out.ScriptPaths = copyStrings(in.ScriptPaths)
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *DatabaseDeploymentStatus) DeepCopyInto(out *DatabaseDeploymentStatus) {
	*out = *in
	if in.Conditions != nil {
		out.Conditions = make([]metav1.Condition, len(in.Conditions))
		for i := range in.Conditions {
			in.Conditions[i].DeepCopyInto(&out.Conditions[i])
		}
	}
	if in.PlanConfigMap != nil {
		in, out := &in.PlanConfigMap, &out.PlanConfigMap
		*out = new(ObjectRef)
		**out = **in
	}
	if in.Steps != nil {
		out.Steps = make([]PlannedStep, len(in.Steps))
		copy(out.Steps, in.Steps)
	}
	if in.Databases != nil {
		out.Databases = make([]DatabaseStatus, len(in.Databases))
		for i := range in.Databases {
			out.Databases[i] = in.Databases[i]
			out.Databases[i].Schemas = copyStrings(in.Databases[i].Schemas)
		}
	}
	out.SkippedDependencies = copyStrings(in.SkippedDependencies)
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
