package planrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/bayleafwalker/dbchain/internal/planner"
)

// Client calls a remote Planner service. Plan.Groups is never populated on
// the client side.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Plan(ctx context.Context, in planner.Input, opts ...grpc.CallOption) (planner.Plan, error) {
	req, err := toStruct(in)
	if err != nil {
		return planner.Plan{}, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, planFullMethod, req, out, opts...); err != nil {
		return planner.Plan{}, err
	}
	var plan planner.Plan
	if err := fromStruct(out, &plan); err != nil {
		return planner.Plan{}, err
	}
	return plan, nil
}
