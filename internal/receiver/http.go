package receiver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/nixlim/storetimer/internal/analytics"
	"github.com/nixlim/storetimer/internal/config"
	"github.com/nixlim/storetimer/internal/timer"
)

// Routes served by HTTPReceiver.
const (
	PathAnalytics = "/api/analytics"
	PathTimers    = "/api/timers"
	PathCart      = "/cart.js"
	PathLogs      = "/v1/logs"
)

// maxBody caps request bodies.
const maxBody = 4 << 20

// HTTPReceiver serves the analytics, timer list, cart and OTLP/HTTP routes.
type HTTPReceiver struct {
	cfg       config.ReceiverConfig
	counters  *Counters
	cartCents atomic.Int64
	listener  net.Listener
	server    *http.Server
}

// NewHTTPReceiver creates a receiver that records into counters.
func NewHTTPReceiver(cfg config.ReceiverConfig, counters *Counters) *HTTPReceiver {
	r := &HTTPReceiver{cfg: cfg, counters: counters}
	r.cartCents.Store(cfg.CartTotalCents)
	return r
}

// SetCartTotal changes the cart total reported by the cart route.
func (r *HTTPReceiver) SetCartTotal(cents int64) {
	r.cartCents.Store(cents)
}

// Handler returns the route mux.
func (r *HTTPReceiver) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(PathAnalytics, r.handleAnalytics)
	mux.HandleFunc(PathTimers, r.handleTimers)
	mux.HandleFunc(PathCart, r.handleCart)
	mux.HandleFunc(PathLogs, r.handleLogs)
	return mux
}

// Start binds the configured port and serves in the background.
func (r *HTTPReceiver) Start(ctx context.Context) error {
	lis, err := listen(ctx, r.cfg.Bind, r.cfg.HTTPPort)
	if err != nil {
		return err
	}
	r.listener = lis
	r.server = &http.Server{
		Handler:      r.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := r.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("WARNING: http receiver: %v", err)
		}
	}()
	return nil
}

// Stop shuts the server down, waiting briefly for in-flight requests.
func (r *HTTPReceiver) Stop() {
	if r.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = r.server.Shutdown(ctx)
}

// Addr returns the bound address, or nil before Start.
func (r *HTTPReceiver) Addr() net.Addr {
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

type analyticsReply struct {
	Success     bool   `json:"success"`
	Impressions int64  `json:"impressions"`
	Clicks      int64  `json:"clicks"`
	Error       string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (r *HTTPReceiver) handleAnalytics(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var ev analytics.Event
	if err := json.NewDecoder(io.LimitReader(req.Body, maxBody)).Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest, analyticsReply{Error: "invalid JSON"})
		return
	}
	counts, err := r.counters.Record("http", ev)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, analyticsReply{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, analyticsReply{Success: true, Impressions: counts.Impressions, Clicks: counts.Clicks})
}

// handleTimers serves the configured timers file. The file is re-read on
// every request so edits show up without a restart.
func (r *HTTPReceiver) handleTimers(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	list := timer.List{Timers: []timer.MetafieldTimer{}}
	if r.cfg.TimersFile != "" {
		data, err := os.ReadFile(r.cfg.TimersFile)
		if err != nil {
			log.Printf("WARNING: reading timers file: %v", err)
			http.Error(w, "timers unavailable", http.StatusInternalServerError)
			return
		}
		timers, err := timer.DecodeList(data)
		if err != nil {
			log.Printf("WARNING: %s: %v", r.cfg.TimersFile, err)
			http.Error(w, "timers unavailable", http.StatusInternalServerError)
			return
		}
		if timers != nil {
			list.Timers = timers
		}
	}
	writeJSON(w, http.StatusOK, list)
}

type cartReply struct {
	TotalPrice int64 `json:"total_price"`
	ItemCount  int   `json:"item_count"`
}

func (r *HTTPReceiver) handleCart(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	total := r.cartCents.Load()
	items := 0
	if total > 0 {
		items = 1
	}
	writeJSON(w, http.StatusOK, cartReply{TotalPrice: total, ItemCount: items})
}

// handleLogs accepts OTLP/HTTP logs in protobuf or JSON encoding and
// answers in the same encoding.
func (r *HTTPReceiver) handleLogs(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(req.Body, maxBody))
	if err != nil {
		http.Error(w, "reading body", http.StatusBadRequest)
		return
	}

	asJSON := strings.HasPrefix(req.Header.Get("Content-Type"), "application/json")
	var export collogspb.ExportLogsServiceRequest
	if asJSON {
		err = protojson.Unmarshal(body, &export)
	} else {
		err = proto.Unmarshal(body, &export)
	}
	if err != nil {
		http.Error(w, "invalid OTLP payload", http.StatusBadRequest)
		return
	}

	resp := ingestLogs(r.counters, "otlp-http", &export)
	var out []byte
	if asJSON {
		w.Header().Set("Content-Type", "application/json")
		out, err = protojson.Marshal(resp)
	} else {
		w.Header().Set("Content-Type", "application/x-protobuf")
		out, err = proto.Marshal(resp)
	}
	if err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(out)
}
