package idempotency

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreFirstSeenIsFalse(t *testing.T) {
	s := NewMemoryStore()
	seen, err := s.Seen(context.Background(), "r1", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if seen {
		t.Fatal("expected the first observation of a request_id to report unseen")
	}
}

func TestMemoryStoreSecondCallIsSeen(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if _, err := s.Seen(ctx, "r1", time.Minute); err != nil {
		t.Fatal(err)
	}
	seen, err := s.Seen(ctx, "r1", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if !seen {
		t.Fatal("expected the second observation of the same request_id to report seen")
	}
}

func TestMemoryStoreExpiresEntries(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if _, err := s.Seen(ctx, "r1", time.Nanosecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)
	seen, err := s.Seen(ctx, "r1", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if seen {
		t.Fatal("expected an entry past its ttl to be treated as unseen again")
	}
}

func TestMemoryStoreDistinctIDsAreIndependent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if _, err := s.Seen(ctx, "r1", time.Minute); err != nil {
		t.Fatal(err)
	}
	seen, err := s.Seen(ctx, "r2", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if seen {
		t.Fatal("expected a distinct request_id to be unaffected by another one being seen")
	}
}
