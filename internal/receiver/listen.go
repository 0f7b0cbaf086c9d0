package receiver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// listen binds bind:port. An occupied port yields a short, stable error.
func listen(ctx context.Context, bind string, port int) (net.Listener, error) {
	var lc net.ListenConfig
	lis, err := lc.Listen(ctx, "tcp", net.JoinHostPort(bind, fmt.Sprint(port)))
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("port %d already in use", port)
		}
		return nil, fmt.Errorf("listening on %s:%d: %w", bind, port, err)
	}
	return lis, nil
}
