// Package ledger implements the append-only, hash-chained audit ledger
// (C2). Entries are never mutated or removed once appended; the chain
// head always equals the last entry's entry_hash, or the genesis hash
// when the ledger is empty.
//
// Ledger is single-writer by construction (spec §5): Append is
// serialized internally with a mutex so concurrent callers cannot
// interleave two appends, but the spec's ordering guarantee — ledger
// order equals submit order — is only meaningful if the kernel core
// calls Append from its own single-threaded orchestration.
package ledger

import (
	"fmt"
	"sync"

	"github.com/kernelgate/governor/pkg/canon"
)

// Ledger is the append-only sequence of committed entries.
type Ledger struct {
	mu      sync.Mutex
	entries []Entry
	head    string
}

// New returns an empty Ledger whose head is the genesis hash.
func New() *Ledger {
	return &Ledger{head: canon.GenesisHash}
}

// Append computes prev_hash from the current head, computes entry_hash
// over the draft's fields, stores the resulting Entry, and advances the
// head. It is all-or-nothing: on any canonicalization/hashing failure
// the ledger is left completely unchanged and the error is returned for
// the caller (kernel core) to treat as fatal (AuditFailure -> HALT).
func (l *Ledger) Append(d Draft) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.head
	fields := d.hashFields()
	b, err := canon.Bytes(fields)
	if err != nil {
		return Entry{}, fmt.Errorf("ledger: canonicalize entry fields: %w", err)
	}

	hashInput := append([]byte(prev+":"), b...)
	entryHash := canon.SHA256Hex(hashInput)

	e := Entry{
		PrevHash:     prev,
		EntryHash:    entryHash,
		RequestID:    d.RequestID,
		Actor:        d.Actor,
		Intent:       d.Intent,
		Decision:     d.Decision,
		StateFrom:    d.StateFrom,
		StateTo:      d.StateTo,
		TimestampMs:  d.TimestampMs,
		ToolName:     d.ToolName,
		ParamsHash:   d.ParamsHash,
		EvidenceHash: d.EvidenceHash,
		Error:        d.Error,
	}

	l.entries = append(l.entries, e)
	l.head = entryHash
	return e, nil
}

// Head returns the prev_hash that the next Append would use.
func (l *Ledger) Head() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.head
}

// Size returns the number of committed entries.
func (l *Ledger) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// EntryAt returns a copy of the entry at the given zero-based index.
func (l *Ledger) EntryAt(i int) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.entries) {
		return Entry{}, false
	}
	return l.entries[i], true
}

// Export returns a deep-copied snapshot of the ledger as an Bundle, with
// the given kernelID, variant tag, and export timestamp.
func (l *Ledger) Export(kernelID, variantTag string, exportedAtMs int64) Bundle {
	l.mu.Lock()
	defer l.mu.Unlock()

	dup := func(p *string) *string {
		if p == nil {
			return nil
		}
		v := *p
		return &v
	}
	entries := make([]Entry, len(l.entries))
	for i, e := range l.entries {
		e.ToolName = dup(e.ToolName)
		e.ParamsHash = dup(e.ParamsHash)
		e.EvidenceHash = dup(e.EvidenceHash)
		e.Error = dup(e.Error)
		entries[i] = e
	}

	root := l.head
	return Bundle{
		KernelID:     kernelID,
		VariantTag:   variantTag,
		Entries:      entries,
		RootHash:     root,
		ExportedAtMs: exportedAtMs,
	}
}

// RecomputeEntryHash independently recomputes what an entry's entry_hash
// should be, given the prev_hash it declares and its own fields — the
// same computation Append performs, exposed so pkg/replay can verify a
// bundle without this package's Append path ever running again.
func RecomputeEntryHash(e Entry) (string, error) {
	d := Draft{
		RequestID: e.RequestID, Actor: e.Actor, Intent: e.Intent,
		Decision: e.Decision, StateFrom: e.StateFrom, StateTo: e.StateTo,
		TimestampMs: e.TimestampMs, ToolName: e.ToolName, ParamsHash: e.ParamsHash,
		EvidenceHash: e.EvidenceHash, Error: e.Error,
	}
	b, err := canon.Bytes(d.hashFields())
	if err != nil {
		return "", fmt.Errorf("ledger: recompute entry fields: %w", err)
	}
	return canon.SHA256Hex(append([]byte(e.PrevHash+":"), b...)), nil
}
