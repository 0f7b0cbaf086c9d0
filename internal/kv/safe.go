package kv

import (
	"encoding/json"

	"github.com/nixlim/storetimer/internal/debuglog"
)

// Safe wraps a Store so that every failure degrades to a read-miss or a
// dropped write. Failures are reported on the debug channel only.
type Safe struct {
	name  string
	store Store
	log   debuglog.Logger
}

// NewSafe wraps store. name identifies the store in debug output.
func NewSafe(name string, store Store, log debuglog.Logger) *Safe {
	if log == nil {
		log = debuglog.Nop{}
	}
	return &Safe{name: name, store: store, log: log}
}

// Get returns the raw value under key, or ok=false on a miss or failure.
func (s *Safe) Get(key string) (string, bool) {
	if s == nil || s.store == nil {
		return "", false
	}
	v, ok, err := s.store.Get(key)
	if err != nil {
		s.log.Log("kv", "read failed", "store", s.name, "key", key, "err", err)
		return "", false
	}
	return v, ok
}

// Set stores value under key and reports whether the write succeeded.
func (s *Safe) Set(key, value string) bool {
	if s == nil || s.store == nil {
		return false
	}
	if err := s.store.Set(key, value); err != nil {
		s.log.Log("kv", "write failed", "store", s.name, "key", key, "err", err)
		return false
	}
	return true
}

// Delete removes key, ignoring failures.
func (s *Safe) Delete(key string) {
	if s == nil || s.store == nil {
		return
	}
	if err := s.store.Delete(key); err != nil {
		s.log.Log("kv", "delete failed", "store", s.name, "key", key, "err", err)
	}
}

// GetJSON decodes the value under key into v. A miss, a read failure or a
// malformed value all report false and leave v untouched.
func (s *Safe) GetJSON(key string, v any) bool {
	raw, ok := s.Get(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		s.log.Log("kv", "decode failed", "store", s.name, "key", key, "err", err)
		return false
	}
	return true
}

// SetJSON encodes v and stores it under key.
func (s *Safe) SetJSON(key string, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Log("kv", "encode failed", "store", s.name, "key", key, "err", err)
		return false
	}
	return s.Set(key, string(data))
}
