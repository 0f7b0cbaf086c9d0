package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nixlim/storetimer/internal/config"
	"github.com/nixlim/storetimer/internal/events"
	"github.com/nixlim/storetimer/internal/receiver"
)

// RunServe runs the development sink until interrupted, then prints the
// per-timer totals.
func RunServe(cfg config.Config, debugPath string) error {
	var logger receiver.Logger = receiver.NopLogger{}
	if debugPath == "" && cfg.Debug.Enabled {
		debugPath = cfg.Debug.LogPath
	}
	if debugPath != "" {
		f, err := os.OpenFile(debugPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening debug log %q: %w", debugPath, err)
		}
		defer f.Close()
		logger = receiver.NewFileLogger(f)
	}

	buf := events.NewRingBuffer(cfg.Display.EventBufferSize)
	counters := receiver.NewCounters(buf, logger)
	recv := receiver.New(cfg.Receiver, counters)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := recv.Start(ctx); err != nil {
		return fmt.Errorf("failed to start receivers: %w", err)
	}
	fmt.Fprintf(os.Stderr, "storetimer: sink listening on http %s, grpc %s\n", recv.HTTP.Addr(), recv.GRPC.Addr())

	<-ctx.Done()
	recv.Stop()

	for _, id := range counters.TimerIDs() {
		c := counters.Get(id)
		fmt.Printf("%s\timpressions=%d\tclicks=%d\n", id, c.Impressions, c.Clicks)
	}
	return nil
}
