package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// DatabaseDeployment asks for a set of databases to be brought to target
// versions. The controller plans the upgrade and publishes the ordered steps.
//
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:scope=Namespaced,shortName=dbd
// +kubebuilder:printcolumn:name="Phase",type=string,JSONPath=`.status.phase`
// +kubebuilder:printcolumn:name="Steps",type=integer,JSONPath=`.status.stepCount`
// +kubebuilder:printcolumn:name="Age",type=date,JSONPath=`.metadata.creationTimestamp`
type DatabaseDeployment struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   DatabaseDeploymentSpec   `json:"spec"`
	Status DatabaseDeploymentStatus `json:"status,omitempty"`
}

type DatabaseDeploymentSpec struct {
	// ScriptPaths are searched for every database after the database's own
	// paths.
	ScriptPaths []string `json:"scriptPaths,omitempty"`

	// ServiceUsers are granted rights on every schema once a database is
	// upgraded.
	ServiceUsers []string `json:"serviceUsers,omitempty"`

	// InsertTestData requires and runs the _testdata companion of every script.
	InsertTestData bool `json:"insertTestData,omitempty"`

	// Databases are planned in the order listed.
	// +kubebuilder:validation:MinItems=1
	Databases []DatabaseTarget `json:"databases"`

	// PublishPlan sends the plan to the event bus when one is configured.
	PublishPlan bool `json:"publishPlan,omitempty"`
}

type DatabaseTarget struct {
	Name string `json:"name"`

	// InstalledVersion is empty when the database does not exist yet.
	InstalledVersion string `json:"installedVersion,omitempty"`

	// TargetVersion is an exact version, "latest", or a constraint like "~2.1".
	TargetVersion string `json:"targetVersion"`

	// Schemas owned by the installed version.
	Schemas []string `json:"schemas,omitempty"`

	ScriptPaths []string `json:"scriptPaths,omitempty"`
}

type DatabaseDeploymentStatus struct {
	ObservedGeneration int64              `json:"observedGeneration,omitempty"`
	Phase              DeploymentPhase    `json:"phase,omitempty"`
	Message            string             `json:"message,omitempty"`
	Conditions         []metav1.Condition `json:"conditions,omitempty"`

	// PlanConfigMap holds the rendered plan.
	PlanConfigMap *ObjectRef `json:"planConfigMap,omitempty"`

	StepCount           int32            `json:"stepCount,omitempty"`
	Steps               []PlannedStep    `json:"steps,omitempty"`
	Databases           []DatabaseStatus `json:"databases,omitempty"`
	SkippedDependencies []string         `json:"skippedDependencies,omitempty"`
}

type PlannedStep struct {
	Database    string `json:"database"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description"`
}

type DatabaseStatus struct {
	Name          string   `json:"name"`
	TargetVersion string   `json:"targetVersion"`
	Schemas       []string `json:"schemas,omitempty"`
}

// +kubebuilder:object:root=true
type DatabaseDeploymentList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []DatabaseDeployment `json:"items"`
}

func init() {
	SchemeBuilder.Register(&DatabaseDeployment{}, &DatabaseDeploymentList{})
}
