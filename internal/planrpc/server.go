package planrpc

import (
	"context"
	"errors"
	"time"

	"github.com/go-logr/logr"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/bayleafwalker/dbchain/internal/events"
	"github.com/bayleafwalker/dbchain/internal/graph"
	"github.com/bayleafwalker/dbchain/internal/planner"
	"github.com/bayleafwalker/dbchain/internal/script"
	"github.com/bayleafwalker/dbchain/internal/upgradepath"
	"github.com/bayleafwalker/dbchain/internal/version"
)

// EventNamespace is the subject token used for plans requested over gRPC.
const EventNamespace = "rpc"

// Server implements PlannerServer on top of a planner.Planner.
type Server struct {
	Planner planner.Planner
	// Publisher is optional; plans are published only when it is set.
	Publisher events.Publisher
	Log       logr.Logger
}

func (s *Server) Plan(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in planner.Input
	if err := fromStruct(req, &in); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "planner input: %v", err)
	}
	log := s.Log.WithValues("plan", in.Name, "databases", len(in.Databases))

	plan, err := s.Planner.Plan(ctx, in)
	if err != nil {
		log.Info("planning failed", "error", err.Error())
		return nil, statusFor(err)
	}
	log.Info("planned", "steps", len(plan.Steps))

	if s.Publisher != nil {
		ev := events.PlanEvent{Source: "planner-server", Namespace: EventNamespace, Name: in.Name, PlannedAt: time.Now().UTC(), Plan: plan}
		if err := events.PublishPlan(ctx, s.Publisher, ev); err != nil {
			log.Error(err, "failed to publish plan event")
		}
	}

	out, err := toStruct(plan)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "plan: %v", err)
	}
	return out, nil
}

func statusFor(err error) error {
	var (
		missing *graph.MissingDependencyError
		cycle   *graph.CycleError
		noPath  *upgradepath.NoPathError
	)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, planner.ErrInvalidInput),
		errors.Is(err, version.ErrInvalidVersion),
		errors.Is(err, script.ErrInvalidDescriptor),
		errors.Is(err, script.ErrInvalidDirective),
		errors.Is(err, script.ErrInvalidScriptName),
		errors.Is(err, upgradepath.ErrNoScriptPaths):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.As(err, &missing), errors.As(err, &cycle), errors.As(err, &noPath),
		errors.Is(err, graph.ErrNoTargetVersion), errors.Is(err, upgradepath.ErrMissingTestData):
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
