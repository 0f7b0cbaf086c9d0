package kv

import (
	"errors"
	"testing"
)

type brokenStore struct{}

func (brokenStore) Get(string) (string, bool, error) { return "", false, errors.New("quota") }
func (brokenStore) Set(string, string) error         { return ErrUnavailable }
func (brokenStore) Delete(string) error              { return ErrUnavailable }

type record struct {
	StartTime int64  `json:"startTime"`
	ResetAt   *int64 `json:"resetAt"`
}

func TestSafe_RoundTripJSON(t *testing.T) {
	s := NewSafe("durable", NewMemoryStore(), nil)

	reset := int64(42)
	if !s.SetJSON("evergreen_t1_v1", record{StartTime: 1000, ResetAt: &reset}) {
		t.Fatal("SetJSON should succeed on a memory store")
	}

	var got record
	if !s.GetJSON("evergreen_t1_v1", &got) {
		t.Fatal("GetJSON should find the record")
	}
	if got.StartTime != 1000 || got.ResetAt == nil || *got.ResetAt != 42 {
		t.Errorf("unexpected record: %+v", got)
	}
}

func TestSafe_MalformedValueIsMiss(t *testing.T) {
	mem := NewMemoryStore()
	_ = mem.Set("cart_timer_t1", "{not json")
	s := NewSafe("session", mem, nil)

	got := record{StartTime: 7}
	if s.GetJSON("cart_timer_t1", &got) {
		t.Fatal("malformed JSON should be reported as a miss")
	}
	if got.StartTime != 7 {
		t.Errorf("target should be untouched, got %+v", got)
	}
}

func TestSafe_DegradesOnStoreFailure(t *testing.T) {
	s := NewSafe("durable", brokenStore{}, nil)

	if _, ok := s.Get("visitor_id"); ok {
		t.Error("failing Get should be a miss")
	}
	if s.Set("visitor_id", "abc") {
		t.Error("failing Set should report false")
	}
	if s.SetJSON("k", record{}) {
		t.Error("failing SetJSON should report false")
	}
	s.Delete("k")
}

func TestSafe_NilStore(t *testing.T) {
	var s *Safe
	if _, ok := s.Get("x"); ok {
		t.Error("nil Safe should miss")
	}
	if s.Set("x", "y") {
		t.Error("nil Safe should not write")
	}
	s.Delete("x")
}

func TestMemoryStore_DeleteMissing(t *testing.T) {
	m := NewMemoryStore()
	if err := m.Delete("absent"); err != nil {
		t.Errorf("deleting a missing key should not fail: %v", err)
	}
	_ = m.Set("a", "1")
	if m.Len() != 1 {
		t.Errorf("expected 1 key, got %d", m.Len())
	}
}
