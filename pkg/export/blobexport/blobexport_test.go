package blobexport

import (
	"context"
	"testing"

	"github.com/kernelgate/governor/pkg/ledger"
)

// memStore is an in-process Store stand-in for tests that exercise
// ExportBundle/LoadBundle without a real S3/GCS backend.
type memStore struct {
	objects map[string][]byte
	puts    int
}

func newMemStore() *memStore { return &memStore{objects: make(map[string][]byte)} }

func (m *memStore) Put(ctx context.Context, key string, data []byte) error {
	m.puts++
	m.objects[key] = data
	return nil
}

func (m *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, errNotFound{key}
	}
	return data, nil
}

func (m *memStore) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := m.objects[key]
	return ok, nil
}

type errNotFound struct{ key string }

func (e errNotFound) Error() string { return "not found: " + e.key }

func sampleBundle() ledger.Bundle {
	return ledger.Bundle{
		KernelID:   "k1",
		VariantTag: "strict",
		RootHash:   "deadbeef",
		Entries: []ledger.Entry{
			{PrevHash: "0", EntryHash: "abc", RequestID: "r1", Actor: "alice", Intent: "hi",
				Decision: ledger.Allow, StateFrom: "IDLE", StateTo: "IDLE", TimestampMs: 1000},
		},
		ExportedAtMs: 2000,
	}
}

func TestExportAndLoadRoundTrip(t *testing.T) {
	store := newMemStore()
	bundle := sampleBundle()

	if err := ExportBundle(context.Background(), store, bundle); err != nil {
		t.Fatal(err)
	}

	got, err := LoadBundle(context.Background(), store, bundle.KernelID, bundle.RootHash)
	if err != nil {
		t.Fatal(err)
	}
	if got.RootHash != bundle.RootHash || len(got.Entries) != len(bundle.Entries) {
		t.Fatalf("round trip mismatch: got %+v", got)
	}
}

func TestExportIsIdempotentOnSameContent(t *testing.T) {
	store := newMemStore()
	bundle := sampleBundle()

	if err := ExportBundle(context.Background(), store, bundle); err != nil {
		t.Fatal(err)
	}
	if err := ExportBundle(context.Background(), store, bundle); err != nil {
		t.Fatal(err)
	}
	if store.puts != 1 {
		t.Fatalf("expected exporting the same bundle twice to write once, got %d puts", store.puts)
	}
}

func TestExportWritesAgainForDifferentRootHash(t *testing.T) {
	store := newMemStore()
	b1 := sampleBundle()
	b2 := sampleBundle()
	b2.RootHash = "different"

	if err := ExportBundle(context.Background(), store, b1); err != nil {
		t.Fatal(err)
	}
	if err := ExportBundle(context.Background(), store, b2); err != nil {
		t.Fatal(err)
	}
	if store.puts != 2 {
		t.Fatalf("expected a distinct root hash to cause a new write, got %d puts", store.puts)
	}
}
