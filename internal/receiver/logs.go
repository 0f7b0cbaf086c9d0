package receiver

import (
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"

	"github.com/nixlim/storetimer/internal/analytics"
)

// ingestLogs records the storetimer events carried by an OTLP logs export.
// Events that fail validation are reported as rejected.
func ingestLogs(c *Counters, source string, req *collogspb.ExportLogsServiceRequest) *collogspb.ExportLogsServiceResponse {
	var rejected int64
	for _, ev := range analytics.EventsFromLogs(req) {
		if _, err := c.Record(source, ev); err != nil {
			rejected++
		}
	}

	resp := &collogspb.ExportLogsServiceResponse{}
	if rejected > 0 {
		resp.PartialSuccess = &collogspb.ExportLogsPartialSuccess{
			RejectedLogRecords: rejected,
			ErrorMessage:       ErrInvalidEvent.Error(),
		}
	}
	return resp
}
