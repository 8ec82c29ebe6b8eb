// Package grpc serves the standard gRPC health service for the account
// server. Serving status follows the reachability of the backing store.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/tubeaccounts/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health entry reported alongside the overall "" entry.
const ServiceName = "tubeaccounts.Accounts"

const defaultProbeInterval = 5 * time.Second

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type GRPCServer struct {
	address       string
	logger        logging.Logger
	pinger        Pinger
	health        *health.Server
	probeInterval time.Duration
}

func NewGRPCServer(a string, l logging.Logger, p Pinger) *GRPCServer {
	return &GRPCServer{
		address:       a,
		logger:        l.With("module", "grpc_server"),
		pinger:        p,
		health:        health.NewServer(),
		probeInterval: defaultProbeInterval,
	}
}

// probe updates the serving status once from the store ping.
func (s *GRPCServer) probe(ctx context.Context) {
	st := healthpb.HealthCheckResponse_SERVING
	pingCtx, cancel := context.WithTimeout(ctx, s.probeInterval)
	defer cancel()
	if err := s.pinger.Ping(pingCtx); err != nil {
		s.logger.Warn(ctx, "store ping failed", "error", err)
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

func (s *GRPCServer) watch(ctx context.Context) {
	ticker := time.NewTicker(s.probeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.probe(ctx)
		}
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.serve(ctx, listen)
}

func (s *GRPCServer) serve(ctx context.Context, listen net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor))
	healthpb.RegisterHealthServer(srv, s.health)

	// cancelled on return so the watcher and stop goroutines also exit when Serve fails
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.probe(ctx)
	go s.watch(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	err := srv.Serve(listen)
	cancel()
	<-done
	return err
}
