package main

import (
	"flag"
	"net"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/bayleafwalker/dbchain/internal/events"
	"github.com/bayleafwalker/dbchain/internal/planner"
	"github.com/bayleafwalker/dbchain/internal/planrpc"
)

func main() {
	var listenAddr string
	var natsURL string
	flag.StringVar(&listenAddr, "listen", ":50051", "address to listen on")
	flag.StringVar(&natsURL, "nats-url", "", "NATS server URL for plan events. Publishing is disabled when empty.")

	opts := zap.Options{Development: true}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))
	log := ctrl.Log.WithName("planner-server")

	srv := &planrpc.Server{
		Planner: planner.NewDefault(ctrl.Log.WithName("planner")),
		Log:     log,
	}
	if natsURL != "" {
		p, err := events.NewNATSPublisher(natsURL)
		if err != nil {
			log.Error(err, "unable to connect to NATS", "url", natsURL)
			os.Exit(1)
		}
		defer func() { _ = p.Close() }()
		srv.Publisher = p
	}

	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		log.Error(err, "unable to listen", "address", listenAddr)
		os.Exit(1)
	}

	grpcServer := grpc.NewServer()
	planrpc.RegisterPlannerServer(grpcServer, srv)
	healthServer := health.NewServer()
	healthServer.SetServingStatus(planrpc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	ctx := ctrl.SetupSignalHandler()
	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		healthServer.Shutdown()
		grpcServer.GracefulStop()
	}()

	log.Info("serving", "address", lis.Addr().String())
	if err := grpcServer.Serve(lis); err != nil {
		log.Error(err, "grpc serve")
		os.Exit(1)
	}
}
