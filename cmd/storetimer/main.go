package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nixlim/storetimer/internal/config"
	"github.com/nixlim/storetimer/internal/tui"
)

const drainTimeout = 10 * time.Second

func main() {
	configFlag := flag.String("config", "", "Path to config.toml (default ~/.config/storetimer/config.toml)")
	pageFlag := flag.String("page", "", "Render the timers found in this HTML file")
	urlFlag := flag.String("url", "", "Page URL the timers are shown on (default: storefront base URL)")
	pathFlag := flag.String("path", "", "Override the page path used for targeting")
	timersFlag := flag.String("timers-url", "", "Fetch the active-timer list from this URL instead of the configured endpoint")
	debugFlag := flag.String("debug", "", "Write debug log (JSONL) to the specified file path")
	renderFlag := flag.Bool("render", false, "Print the page after one frame and exit")
	serveFlag := flag.Bool("serve", false, "Run the development analytics sink")
	flag.Parse()

	var (
		loadResult *config.LoadResult
		err        error
	)
	if *configFlag != "" {
		loadResult, err = config.LoadFrom(*configFlag)
	} else {
		loadResult, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "storetimer: config error: %v\n", err)
		os.Exit(1)
	}
	cfg := loadResult.Config

	for _, w := range loadResult.Warnings {
		fmt.Fprintf(os.Stderr, "storetimer: config warning: %s\n", w)
	}

	if *serveFlag {
		if err := RunServe(cfg, *debugFlag); err != nil {
			fmt.Fprintf(os.Stderr, "storetimer: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := newRuntime(ctx, cfg, options{
		pageFile:  *pageFlag,
		pageURL:   *urlFlag,
		path:      *pathFlag,
		timersURL: *timersFlag,
		debugPath: *debugFlag,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "storetimer: %v\n", err)
		os.Exit(1)
	}

	if *renderFlag {
		err := renderOnce(ctx, rt, os.Stdout)
		rt.close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "storetimer: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if !rt.persistent {
		fmt.Fprintln(os.Stderr, "storetimer: durable storage unavailable, state will not survive restarts")
	}

	if err := rt.boot.Run(ctx); err != nil {
		rt.close()
		fmt.Fprintf(os.Stderr, "storetimer: %v\n", err)
		os.Exit(1)
	}

	shutdownMgr := tui.NewShutdownManager()
	shutdownMgr.DrainTimeout = drainTimeout
	shutdownMgr.StopTimers = rt.boot.Stop
	shutdownMgr.DrainAnalytics = rt.sender.Wait
	shutdownMgr.Cleanup = rt.close

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.SetOutput(io.Discard)

	model := tui.NewModel(cfg,
		tui.WithTimerProvider(rt.engine),
		tui.WithInteractor(rt.boot),
		tui.WithFrameDriver(rt.frames),
		tui.WithDeliveryProvider(rt.deliveries),
		tui.WithPageURL(rt.pageURL),
		tui.WithOnShutdown(func() {
			_ = shutdownMgr.Shutdown()
		}),
	)

	p := tea.NewProgram(model,
		tea.WithAltScreen(),
	)

	go func() {
		select {
		case <-sigCh:
			_ = shutdownMgr.Shutdown()
			p.Quit()
		case <-ctx.Done():
			return
		}
	}()

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "storetimer: %v\n", err)
		os.Exit(1)
	}
}

// renderOnce bootstraps the page, runs a single frame, waits for the
// resulting analytics and writes the page to w.
func renderOnce(ctx context.Context, rt *runtime, w io.Writer) error {
	if err := rt.boot.Run(ctx); err != nil {
		return err
	}
	rt.frames.Fire(0)
	rt.boot.Stop()
	if err := rt.drain(drainTimeout); err != nil {
		log.Printf("WARNING: analytics still in flight: %v", err)
	}
	return rt.doc.Render(w)
}
