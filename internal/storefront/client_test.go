package storefront

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nixlim/storetimer/internal/config"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(config.StorefrontConfig{
		BaseURL:        srv.URL + "/",
		CartEndpoint:   "/cart.js",
		TimersEndpoint: "api/timers",
		TimeoutMS:      2000,
	})
}

func TestClient_Subtotal(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cart.js" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token":"abc","total_price":3550,"item_count":2}`))
	}))

	if got := c.Subtotal(context.Background()); got != 35.5 {
		t.Errorf("Subtotal: want 35.5, got %v", got)
	}
}

func TestClient_SubtotalFailuresAreZero(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("{"))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			if got := c.Subtotal(context.Background()); got != 0 {
				t.Errorf("want 0, got %v", got)
			}
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		c := New(config.StorefrontConfig{BaseURL: "http://127.0.0.1:1", CartEndpoint: "/cart.js", TimeoutMS: 500})
		if got := c.Subtotal(context.Background()); got != 0 {
			t.Errorf("want 0, got %v", got)
		}
	})
}

func TestClient_Timers(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/timers" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"timers":[{"id":"a","type":"EVERGREEN","evergreenDuration":10},{"id":"b"}]}`))
	}))

	timers, err := c.Timers(context.Background())
	if err != nil {
		t.Fatalf("Timers: %v", err)
	}
	if len(timers) != 2 || timers[0].ID != "a" || timers[1].ID != "b" {
		t.Fatalf("unexpected timers %+v", timers)
	}
	if timers[0].EvergreenDuration == nil || *timers[0].EvergreenDuration != 10 {
		t.Errorf("evergreen duration not decoded")
	}
}

func TestClient_TimersError(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())
	if _, err := c.Timers(context.Background()); err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestClient_Resolve(t *testing.T) {
	c := New(config.StorefrontConfig{BaseURL: "https://shop.example/"})
	tests := map[string]string{
		"/cart.js":                      "https://shop.example/cart.js",
		"cart.js":                       "https://shop.example/cart.js",
		"https://cdn.example/timers.js": "https://cdn.example/timers.js",
	}
	for in, want := range tests {
		if got := c.Resolve(in); got != want {
			t.Errorf("Resolve(%q) = %q, want %q", in, got, want)
		}
	}
}
