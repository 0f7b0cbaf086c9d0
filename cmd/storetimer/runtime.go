package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/nixlim/storetimer/internal/analytics"
	"github.com/nixlim/storetimer/internal/bootstrap"
	"github.com/nixlim/storetimer/internal/config"
	"github.com/nixlim/storetimer/internal/debuglog"
	"github.com/nixlim/storetimer/internal/engine"
	"github.com/nixlim/storetimer/internal/events"
	"github.com/nixlim/storetimer/internal/kv"
	"github.com/nixlim/storetimer/internal/page"
	"github.com/nixlim/storetimer/internal/storage"
	"github.com/nixlim/storetimer/internal/storefront"
	"github.com/nixlim/storetimer/internal/timer"
	"github.com/nixlim/storetimer/internal/timeutil"
)

// options are the command-line inputs that shape one page view.
type options struct {
	pageFile  string
	pageURL   string
	path      string
	timersURL string
	debugPath string
}

// runtime is one page view with every component wired.
type runtime struct {
	cfg        config.Config
	pageURL    string
	doc        *page.Document
	durable    storage.Durable
	persistent bool
	frames     *engine.ManualScheduler
	engine     *engine.Engine
	sender     *analytics.Sender
	boot       *bootstrap.Bootstrapper
	deliveries *events.RingBuffer
	closers    []func() error
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func newRuntime(ctx context.Context, cfg config.Config, opts options) (*runtime, error) {
	rt := &runtime{cfg: cfg, pageURL: opts.pageURL}
	if rt.pageURL == "" {
		rt.pageURL = strings.TrimRight(cfg.Storefront.BaseURL, "/") + "/"
	}
	ready := false
	defer func() {
		if !ready {
			rt.close()
		}
	}()

	var err error
	rt.durable, rt.persistent, err = storage.NewDurable(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	rt.closers = append(rt.closers, rt.durable.Close)

	logger, err := rt.debugLogger(cfg.Debug, opts.debugPath)
	if err != nil {
		return nil, err
	}

	durable := kv.NewSafe("durable", rt.durable, logger)
	session := kv.NewSafe("session", kv.NewMemoryStore(), logger)

	if opts.timersURL != "" {
		cfg.Storefront.TimersEndpoint = opts.timersURL
	}
	client := storefront.New(cfg.Storefront, storefront.WithLogger(logger))

	rt.doc, err = loadDocument(ctx, client, opts.pageFile, rt.pageURL)
	if err != nil {
		return nil, err
	}

	transport, err := rt.transport(cfg.Analytics)
	if err != nil {
		return nil, err
	}

	rt.deliveries = events.NewRingBuffer(cfg.Display.EventBufferSize)
	rt.sender = analytics.NewSender(transport, session, rt.pageURL,
		analytics.WithLogger(logger),
		analytics.WithObserver(rt.deliveries),
		analytics.WithMaxRetries(cfg.Analytics.MaxRetries),
	)

	path := opts.path
	if path == "" {
		path = bootstrap.PathOf(rt.pageURL)
	}

	rt.frames = engine.NewManualScheduler()
	rt.engine = engine.New(timer.Deps{
		Clock:     timeutil.SystemClock,
		Durable:   durable,
		Session:   session,
		VisitorID: timer.VisitorID(durable),
		PagePath:  path,
		CartPath:  cfg.Storefront.CartPath,
		CartRoute: bootstrap.CartRoute(rt.doc),
		Cart:      client,
		Log:       logger,
	},
		engine.WithScheduler(rt.frames),
		engine.WithTickInterval(ms(cfg.Display.TickIntervalMS)),
		engine.WithPulse(ms(cfg.Display.PulseMS)),
	)

	rt.boot = bootstrap.New(rt.doc, rt.engine, rt.sender, durable,
		bootstrap.WithLogger(logger),
		bootstrap.WithCloseDelay(ms(cfg.Display.CloseAnimationMS)),
		bootstrap.WithPath(path),
	)
	ready = true
	return rt, nil
}

// debugLogger returns the JSONL logger when debugging is enabled by
// config, flag, the page URL or the persisted flag, and Nop otherwise. A
// debug query parameter on the page URL is persisted for later views.
func (rt *runtime) debugLogger(cfg config.DebugConfig, flagPath string) (debuglog.Logger, error) {
	if u, err := url.Parse(rt.pageURL); err == nil && u.Query().Get(debuglog.QueryParam) != "" {
		_ = rt.durable.Set(debuglog.FlagKey, u.Query().Get(debuglog.QueryParam))
	}
	persisted, _, _ := rt.durable.Get(debuglog.FlagKey)

	path := flagPath
	if path == "" {
		path = cfg.LogPath
	}
	if flagPath == "" && !cfg.Enabled && !debuglog.Requested(rt.pageURL, persisted) {
		return debuglog.Nop{}, nil
	}
	if path == "" {
		return debuglog.NewFileLogger(os.Stderr), nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening debug log %q: %w", path, err)
	}
	rt.closers = append(rt.closers, f.Close)
	return debuglog.NewFileLogger(f), nil
}

func (rt *runtime) transport(cfg config.AnalyticsConfig) (analytics.Transport, error) {
	timeout := ms(cfg.TimeoutMS)
	if cfg.Transport == config.TransportOTLP {
		t, err := analytics.DialOTLP(cfg.OTLPEndpoint, timeout)
		if err != nil {
			return nil, fmt.Errorf("dialing OTLP endpoint: %w", err)
		}
		rt.closers = append(rt.closers, t.Close)
		return t, nil
	}
	return analytics.NewHTTPTransport(cfg.Endpoint, timeout), nil
}

// loadDocument parses the page file when given, and otherwise builds the
// page from the storefront's active-timer list.
func loadDocument(ctx context.Context, client *storefront.Client, pageFile, pageURL string) (*page.Document, error) {
	if pageFile != "" {
		f, err := os.Open(pageFile)
		if err != nil {
			return nil, fmt.Errorf("opening page: %w", err)
		}
		defer f.Close()
		doc, err := page.Parse(f, pageURL)
		if err != nil {
			return nil, fmt.Errorf("parsing page: %w", err)
		}
		return doc, nil
	}

	timers, err := client.Timers(ctx)
	if err != nil {
		return nil, err
	}
	return page.FromTimers(timers, pageURL)
}

// drain waits up to timeout for in-flight analytics.
func (rt *runtime) drain(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return rt.sender.Wait(ctx)
}

// close releases resources in reverse order of acquisition.
func (rt *runtime) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		_ = rt.closers[i]()
	}
	rt.closers = nil
}
