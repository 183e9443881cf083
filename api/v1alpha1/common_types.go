package v1alpha1

type DeploymentPhase string

const (
	PhasePending DeploymentPhase = "Pending"
	PhasePlanned DeploymentPhase = "Planned"
	PhaseError   DeploymentPhase = "Error"
)

type ObjectRef struct {
	Name string `json:"name"`
}
