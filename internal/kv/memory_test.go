package kv

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_SetIfAbsent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	ok, err := s.SetIfAbsent(ctx, "k", "a|w1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first set: ok=%v err=%v", ok, err)
	}

	ok, err = s.SetIfAbsent(ctx, "k", "b|w2", time.Minute)
	if err != nil {
		t.Fatalf("second set: %v", err)
	}
	if ok {
		t.Fatalf("expected second SetIfAbsent to lose")
	}

	v, found, err := s.Get(ctx, "k")
	if err != nil || !found {
		t.Fatalf("get: found=%v err=%v", found, err)
	}
	if v != "a|w1" {
		t.Fatalf("expected original value kept, got %q", v)
	}
}

func TestMemoryStore_ExpiryMakesKeyReacquirable(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	now := time.Now()
	s.Now = func() time.Time { return now }

	if ok, _ := s.SetIfAbsent(ctx, "k", "a|w1", 10*time.Second); !ok {
		t.Fatalf("first set should win")
	}

	now = now.Add(11 * time.Second)

	ok, err := s.SetIfAbsent(ctx, "k", "b|w2", 10*time.Second)
	if err != nil || !ok {
		t.Fatalf("expected re-acquire after expiry: ok=%v err=%v", ok, err)
	}

	v, found, _ := s.Get(ctx, "k")
	if !found || v != "b|w2" {
		t.Fatalf("expected new value, got %q found=%v", v, found)
	}
}

func TestMemoryStore_DeleteIfTokenMatches(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if ok, _ := s.SetIfAbsent(ctx, "k", "tokA|worker-1", 0); !ok {
		t.Fatalf("set failed")
	}

	ok, err := s.DeleteIfTokenMatches(ctx, "k", "tokB")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok {
		t.Fatalf("mismatched token must not delete")
	}
	if _, found, _ := s.Get(ctx, "k"); !found {
		t.Fatalf("key should survive mismatched delete")
	}

	ok, err = s.DeleteIfTokenMatches(ctx, "k", "tokA")
	if err != nil || !ok {
		t.Fatalf("matching delete: ok=%v err=%v", ok, err)
	}
	if _, found, _ := s.Get(ctx, "k"); found {
		t.Fatalf("key should be gone")
	}
}

func TestMemoryStore_TTLReporting(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, ok, _ := s.TTL(ctx, "missing"); ok {
		t.Fatalf("missing key should report ok=false")
	}

	_, _ = s.SetIfAbsent(ctx, "forever", "v", 0)
	d, ok, err := s.TTL(ctx, "forever")
	if err != nil || !ok {
		t.Fatalf("ttl forever: ok=%v err=%v", ok, err)
	}
	if d != NoExpiry {
		t.Fatalf("expected NoExpiry, got %v", d)
	}

	_, _ = s.SetIfAbsent(ctx, "timed", "v", time.Minute)
	d, ok, _ = s.TTL(ctx, "timed")
	if !ok || d <= 0 || d > time.Minute {
		t.Fatalf("unexpected ttl %v ok=%v", d, ok)
	}
}

func TestMemoryStore_ScanPattern(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, _ = s.SetIfAbsent(ctx, "ns:processing:CJ1", "v", 0)
	_, _ = s.SetIfAbsent(ctx, "ns:processing:CJ2", "v", 0)
	_, _ = s.SetIfAbsent(ctx, "ns:owner:w1", "v", 0)

	var got []string
	err := s.Scan(ctx, "ns:processing:*", func(key string) error {
		got = append(got, key)
		return nil
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 keys, got %v", got)
	}
}

func TestMemoryStore_IncrBy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	n, err := s.IncrBy(ctx, "c", 2, time.Minute)
	if err != nil || n != 2 {
		t.Fatalf("first incr: n=%d err=%v", n, err)
	}
	n, err = s.IncrBy(ctx, "c", 3, time.Minute)
	if err != nil || n != 5 {
		t.Fatalf("second incr: n=%d err=%v", n, err)
	}
}
