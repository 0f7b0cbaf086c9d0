package receiver

import (
	"context"
	"net"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	"google.golang.org/grpc"

	"github.com/nixlim/storetimer/internal/config"
)

// GRPCReceiver accepts analytics events as OTLP logs over gRPC.
type GRPCReceiver struct {
	collogspb.UnimplementedLogsServiceServer

	cfg      config.ReceiverConfig
	counters *Counters
	listener net.Listener
	server   *grpc.Server
}

// NewGRPCReceiver creates a receiver that records into counters.
func NewGRPCReceiver(cfg config.ReceiverConfig, counters *Counters) *GRPCReceiver {
	return &GRPCReceiver{cfg: cfg, counters: counters}
}

// Start binds the configured port and serves in the background.
func (r *GRPCReceiver) Start(ctx context.Context) error {
	lis, err := listen(ctx, r.cfg.Bind, r.cfg.GRPCPort)
	if err != nil {
		return err
	}
	r.listener = lis
	r.server = grpc.NewServer()
	collogspb.RegisterLogsServiceServer(r.server, r)

	go func() {
		_ = r.server.Serve(lis)
	}()
	return nil
}

// Stop gracefully stops the server.
func (r *GRPCReceiver) Stop() {
	if r.server != nil {
		r.server.GracefulStop()
	}
}

// Addr returns the bound address, or nil before Start.
func (r *GRPCReceiver) Addr() net.Addr {
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

// Export implements the OTLP LogsService.
func (r *GRPCReceiver) Export(_ context.Context, req *collogspb.ExportLogsServiceRequest) (*collogspb.ExportLogsServiceResponse, error) {
	return ingestLogs(r.counters, "otlp-grpc", req), nil
}
