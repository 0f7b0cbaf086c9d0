package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPTransport posts events as JSON. Requests are detached from the
// caller's context so they survive the page being torn down, the way a
// browser beacon does; only the transport timeout bounds them.
type HTTPTransport struct {
	client   *http.Client
	endpoint string
	timeout  time.Duration
}

// NewHTTPTransport creates a transport posting to endpoint.
func NewHTTPTransport(endpoint string, timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		client:   &http.Client{},
		endpoint: endpoint,
		timeout:  timeout,
	}
}

type sinkResponse struct {
	Success     bool  `json:"success"`
	Impressions int64 `json:"impressions"`
	Clicks      int64 `json:"clicks"`
}

func (t *HTTPTransport) Deliver(ctx context.Context, ev Event) (Response, error) {
	ctx = context.WithoutCancel(ctx)
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return Response{}, fmt.Errorf("encoding event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	out := Response{Status: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var sr sinkResponse
	if json.Unmarshal(data, &sr) == nil {
		out.Impressions, out.Clicks = sr.Impressions, sr.Clicks
	}
	return out, nil
}
