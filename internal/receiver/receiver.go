package receiver

import (
	"context"
	"fmt"

	"github.com/nixlim/storetimer/internal/config"
)

// Receiver runs the HTTP and gRPC listeners together.
type Receiver struct {
	HTTP *HTTPReceiver
	GRPC *GRPCReceiver
}

// New creates both listeners over one set of counters.
func New(cfg config.ReceiverConfig, counters *Counters) *Receiver {
	return &Receiver{
		HTTP: NewHTTPReceiver(cfg, counters),
		GRPC: NewGRPCReceiver(cfg, counters),
	}
}

// Start starts gRPC then HTTP. If HTTP fails, gRPC is stopped again.
func (r *Receiver) Start(ctx context.Context) error {
	if err := r.GRPC.Start(ctx); err != nil {
		return fmt.Errorf("grpc receiver: %w", err)
	}
	if err := r.HTTP.Start(ctx); err != nil {
		r.GRPC.Stop()
		return fmt.Errorf("http receiver: %w", err)
	}
	return nil
}

// Stop stops both listeners.
func (r *Receiver) Stop() {
	r.HTTP.Stop()
	r.GRPC.Stop()
}
