// Package planner turns a deployment request for several databases into one
// ordered list of step groups.
package planner

import "context"

// Planner computes a Plan for a given Input.
type Planner interface {
	Plan(ctx context.Context, in Input) (Plan, error)
}
