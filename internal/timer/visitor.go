package timer

import (
	"github.com/google/uuid"

	"github.com/nixlim/storetimer/internal/kv"
)

// VisitorKey is the durable store key of the visitor identifier.
const VisitorKey = "visitor_id"

// VisitorID returns the persisted visitor identifier, creating one on first
// use. If the store cannot persist it, a fresh identifier is still returned
// so evergreen state works for the lifetime of the process.
func VisitorID(durable *kv.Safe) string {
	if id, ok := durable.Get(VisitorKey); ok && id != "" {
		return id
	}
	id := uuid.NewString()
	durable.Set(VisitorKey, id)
	return id
}
