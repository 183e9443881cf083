package events

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/bayleafwalker/dbchain/internal/planner"
)

type recordingPublisher struct {
	subject string
	payload []byte
	err     error
}

func (r *recordingPublisher) Publish(_ context.Context, subject string, payload []byte) error {
	r.subject, r.payload = subject, payload
	return r.err
}

func (r *recordingPublisher) Close() error { return nil }

func TestSubject(t *testing.T) {
	tests := map[string][2]string{
		"dbchain.plan.prod.orders":       {"prod", "orders"},
		"dbchain.plan.default.orders_v2": {"", "orders.v2"},
		"dbchain.plan.team-a.all_dbs_":   {"team-a", "all dbs*"},
	}
	for want, in := range tests {
		if got := Subject(in[0], in[1]); got != want {
			t.Fatalf("Subject(%q, %q): expected %q, got %q", in[0], in[1], want, got)
		}
	}
}

func TestPublishPlan(t *testing.T) {
	rec := &recordingPublisher{}
	ev := PlanEvent{
		Source:    "controller",
		Namespace: "prod",
		Name:      "orders",
		PlannedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Plan: planner.Plan{
			Steps: []planner.PlannedStep{{Database: "Orders", Kind: "create", Version: "1.0", Description: "Orders 1.0 (create)"}},
		},
	}
	if err := PublishPlan(context.Background(), rec, ev); err != nil {
		t.Fatalf("PublishPlan: %v", err)
	}
	if rec.subject != "dbchain.plan.prod.orders" {
		t.Fatalf("unexpected subject %q", rec.subject)
	}
	var got PlanEvent
	if err := json.Unmarshal(rec.payload, &got); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(got.Plan.Steps) != 1 || got.Plan.Steps[0].Description != "Orders 1.0 (create)" {
		t.Fatalf("unexpected payload %s", rec.payload)
	}

	rec.err = errors.New("down")
	if err := PublishPlan(context.Background(), rec, ev); err == nil || !errors.Is(err, rec.err) {
		t.Fatalf("expected wrapped publish error, got %v", err)
	}
	if err := PublishPlan(context.Background(), nil, ev); err != nil {
		t.Fatalf("expected nil publisher to be ignored, got %v", err)
	}
}

// Requires a reachable NATS server, e.g. DBCHAIN_NATS_URL=nats://127.0.0.1:4222.
func TestNATSPublisher_RoundTrip(t *testing.T) {
	url := os.Getenv("DBCHAIN_NATS_URL")
	if url == "" {
		t.Skip("set DBCHAIN_NATS_URL to run")
	}

	sub, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer sub.Close()
	msgs := make(chan *nats.Msg, 1)
	if _, err := sub.ChanSubscribe(SubjectPrefix+".>", msgs); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := sub.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("NewNATSPublisher: %v", err)
	}
	defer pub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := PublishPlan(ctx, pub, PlanEvent{Source: "test", Namespace: "e2e", Name: "orders"}); err != nil {
		t.Fatalf("PublishPlan: %v", err)
	}

	select {
	case m := <-msgs:
		if m.Subject != "dbchain.plan.e2e.orders" {
			t.Fatalf("unexpected subject %q", m.Subject)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for plan event")
	}
}
