package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/bayleafwalker/dbchain/internal/manifest"
	"github.com/bayleafwalker/dbchain/internal/planrpc"
)

func main() {
	var target string
	var manifestPath string
	var timeout time.Duration
	flag.StringVar(&target, "target", "127.0.0.1:50051", "gRPC server address")
	flag.StringVar(&manifestPath, "f", "", "DatabaseDeployment manifest to plan")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	flag.Parse()

	if manifestPath == "" {
		fmt.Fprintln(os.Stderr, "planner-client: -f is required")
		os.Exit(2)
	}
	dd, err := manifest.Load(manifestPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load manifest: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial %s: %v\n", target, err)
		os.Exit(1)
	}
	defer conn.Close()

	plan, err := planrpc.NewClient(conn).Plan(ctx, manifest.PlannerInput(dd))
	if err != nil {
		st := status.Convert(err)
		fmt.Fprintf(os.Stderr, "Plan error: code=%s message=%q\n", st.Code(), st.Message())
		os.Exit(1)
	}
	fmt.Print(plan.Summary())
	for _, db := range plan.Databases {
		fmt.Printf("%s -> %s (%d groups)\n", db.Name, db.TargetVersion, db.Groups)
	}
}
