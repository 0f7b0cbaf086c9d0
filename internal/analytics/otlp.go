package analytics

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// Log record attributes carrying an event over OTLP.
const (
	EventNamePrefix = "storetimer."
	AttrEventName   = "event.name"
	AttrTimerID     = "timer.id"
	AttrURL         = "url.full"
	ServiceName     = "storetimer"
)

// OTLPTransport exports events as OTLP log records over gRPC.
type OTLPTransport struct {
	conn    *grpc.ClientConn
	client  collogspb.LogsServiceClient
	timeout time.Duration
}

// DialOTLP connects to an OTLP/gRPC logs endpoint ("host:port"). The
// connection is established lazily.
func DialOTLP(endpoint string, timeout time.Duration) (*OTLPTransport, error) {
	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("creating OTLP client for %s: %w", endpoint, err)
	}
	return &OTLPTransport{
		conn:    conn,
		client:  collogspb.NewLogsServiceClient(conn),
		timeout: timeout,
	}, nil
}

func (t *OTLPTransport) Close() error {
	return t.conn.Close()
}

// Deliver exports ev. gRPC status codes are mapped onto HTTP statuses so
// the sender applies one retry policy; an unreachable collector is a
// network failure.
func (t *OTLPTransport) Deliver(ctx context.Context, ev Event) (Response, error) {
	ctx = context.WithoutCancel(ctx)
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	resp, err := t.client.Export(ctx, ToLogsRequest(ev))
	if err != nil {
		code := status.Code(err)
		if code == codes.Unavailable || code == codes.DeadlineExceeded || code == codes.Canceled {
			return Response{}, err
		}
		return Response{Status: httpStatus(code)}, nil
	}
	if ps := resp.GetPartialSuccess(); ps != nil && ps.GetRejectedLogRecords() > 0 {
		return Response{Status: http.StatusBadRequest}, nil
	}
	return Response{Status: http.StatusOK}, nil
}

func httpStatus(c codes.Code) int {
	switch c {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound, codes.Unimplemented:
		return http.StatusNotFound
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

func stringAttr(key, value string) *commonpb.KeyValue {
	return &commonpb.KeyValue{
		Key:   key,
		Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: value}},
	}
}

// ToLogsRequest wraps ev in an OTLP logs export request.
func ToLogsRequest(ev Event) *collogspb.ExportLogsServiceRequest {
	ts := uint64(ev.Timestamp) * uint64(time.Millisecond)
	return &collogspb.ExportLogsServiceRequest{
		ResourceLogs: []*logspb.ResourceLogs{{
			Resource: &resourcepb.Resource{
				Attributes: []*commonpb.KeyValue{stringAttr("service.name", ServiceName)},
			},
			ScopeLogs: []*logspb.ScopeLogs{{
				Scope: &commonpb.InstrumentationScope{Name: ServiceName + "/analytics"},
				LogRecords: []*logspb.LogRecord{{
					TimeUnixNano:         ts,
					ObservedTimeUnixNano: ts,
					Body:                 &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: string(ev.Event)}},
					Attributes: []*commonpb.KeyValue{
						stringAttr(AttrEventName, EventNamePrefix+string(ev.Event)),
						stringAttr(AttrTimerID, ev.TimerID),
						stringAttr(AttrURL, ev.URL),
					},
				}},
			}},
		}},
	}
}

// EventsFromLogs extracts storetimer events from an OTLP logs request,
// skipping records that are not storetimer events.
func EventsFromLogs(req *collogspb.ExportLogsServiceRequest) []Event {
	var out []Event
	for _, rl := range req.GetResourceLogs() {
		for _, sl := range rl.GetScopeLogs() {
			for _, lr := range sl.GetLogRecords() {
				if ev, ok := eventFromRecord(lr); ok {
					out = append(out, ev)
				}
			}
		}
	}
	return out
}

func eventFromRecord(lr *logspb.LogRecord) (Event, bool) {
	attrs := make(map[string]string, len(lr.GetAttributes()))
	for _, kv := range lr.GetAttributes() {
		attrs[kv.GetKey()] = kv.GetValue().GetStringValue()
	}
	name, ok := strings.CutPrefix(attrs[AttrEventName], EventNamePrefix)
	if !ok {
		return Event{}, false
	}
	return Event{
		Event:     Kind(name),
		TimerID:   attrs[AttrTimerID],
		Timestamp: int64(lr.GetTimeUnixNano() / uint64(time.Millisecond)),
		URL:       attrs[AttrURL],
	}, true
}
