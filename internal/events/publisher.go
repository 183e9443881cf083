// Package events publishes finished plans to the event bus.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bayleafwalker/dbchain/internal/planner"
)

// SubjectPrefix is the root of every plan subject.
const SubjectPrefix = "dbchain.plan"

// Publisher is the minimal event-publishing seam.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte) error
	Close() error
}

// PlanEvent is the JSON payload sent for every finished plan.
type PlanEvent struct {
	Source     string       `json:"source"`
	Namespace  string       `json:"namespace,omitempty"`
	Name       string       `json:"name"`
	Generation int64        `json:"generation,omitempty"`
	PlannedAt  time.Time    `json:"plannedAt"`
	Plan       planner.Plan `json:"plan"`
}

// Subject returns "dbchain.plan.<namespace>.<name>". Characters NATS treats
// as token separators or wildcards are replaced.
func Subject(namespace, name string) string {
	if namespace == "" {
		namespace = "default"
	}
	return SubjectPrefix + "." + subjectToken(namespace) + "." + subjectToken(name)
}

func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

// PublishPlan encodes ev and publishes it on its subject.
func PublishPlan(ctx context.Context, p Publisher, ev PlanEvent) error {
	if p == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode plan event: %w", err)
	}
	subject := Subject(ev.Namespace, ev.Name)
	if err := p.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, string, []byte) error { return nil }
func (Noop) Close() error                                  { return nil }
