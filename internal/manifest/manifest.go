// Package manifest reads DatabaseDeployment manifests and converts them to
// planner input.
package manifest

import (
	"errors"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	dbchainv1alpha1 "github.com/bayleafwalker/dbchain/api/v1alpha1"
	"github.com/bayleafwalker/dbchain/internal/planner"
)

const Kind = "DatabaseDeployment"

var ErrWrongKind = errors.New("manifest is not a DatabaseDeployment")

// Load reads a single DatabaseDeployment from a YAML or JSON file.
func Load(path string) (*dbchainv1alpha1.DatabaseDeployment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	dd, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return dd, nil
}

// Decode rejects unknown fields. An empty apiVersion or kind is accepted so
// bare specs can be planned locally.
func Decode(data []byte) (*dbchainv1alpha1.DatabaseDeployment, error) {
	var dd dbchainv1alpha1.DatabaseDeployment
	if err := yaml.UnmarshalStrict(data, &dd); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if dd.Kind != "" && dd.Kind != Kind {
		return nil, fmt.Errorf("%w: kind %q", ErrWrongKind, dd.Kind)
	}
	if dd.APIVersion != "" && dd.APIVersion != dbchainv1alpha1.GroupVersion.String() {
		return nil, fmt.Errorf("%w: apiVersion %q", ErrWrongKind, dd.APIVersion)
	}
	if dd.Namespace == "" {
		dd.Namespace = "default"
	}
	return &dd, nil
}

// PlannerInput converts the resource spec. The plan is named
// "<namespace>/<name>".
func PlannerInput(dd *dbchainv1alpha1.DatabaseDeployment) planner.Input {
	in := planner.Input{
		Name:           dd.Namespace + "/" + dd.Name,
		ScriptPaths:    dd.Spec.ScriptPaths,
		ServiceUsers:   dd.Spec.ServiceUsers,
		InsertTestData: dd.Spec.InsertTestData,
	}
	for _, db := range dd.Spec.Databases {
		in.Databases = append(in.Databases, planner.DatabaseRequest{
			Name:             db.Name,
			InstalledVersion: db.InstalledVersion,
			TargetVersion:    db.TargetVersion,
			Schemas:          db.Schemas,
			ScriptPaths:      db.ScriptPaths,
		})
	}
	return in
}
