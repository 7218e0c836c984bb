// Package replay implements the Replay Verifier (C6, spec §4.7): given
// an exported evidence bundle, recompute every entry's hash from its
// declared fields and re-chain it against the entry before it, without
// ever trusting the bundle's own stored values. Verification never
// short-circuits — every entry is checked and every discrepancy found
// is reported, so a tampered bundle's full extent is visible in one
// pass rather than stopping at the first broken link.
package replay

import (
	"fmt"

	"github.com/kernelgate/governor/pkg/canon"
	"github.com/kernelgate/governor/pkg/ledger"
)

// Discrepancy names one specific way an entry failed verification.
type Discrepancy struct {
	Index   int    `json:"index"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Report is the outcome of Verify.
type Report struct {
	Valid         bool          `json:"valid"`
	Discrepancies []Discrepancy `json:"discrepancies,omitempty"`
}

// Verify re-chains bundle.Entries from the genesis hash and checks
// three things for every entry, independently of the others:
//
//  1. the entry's declared prev_hash equals the previous entry's
//     entry_hash (or the genesis hash, for the first entry);
//  2. recomputing entry_hash from prev_hash and the entry's own fields
//     yields the stored entry_hash;
//  3. the bundle's declared root_hash equals the last entry's
//     entry_hash (or genesis, if the bundle is empty).
//
// A failure in one entry does not stop verification of the rest: the
// chain continues from each entry's stored entry_hash, so a single
// tampered link is reported without masking problems further down the
// chain.
func Verify(bundle ledger.Bundle) Report {
	report := Report{Valid: true}

	expectedPrev := canon.GenesisHash
	for i, e := range bundle.Entries {
		if !canon.ConstantTimeEqualHex(e.PrevHash, expectedPrev) {
			report.Valid = false
			report.Discrepancies = append(report.Discrepancies, Discrepancy{
				Index: i, Field: "prev_hash",
				Message: fmt.Sprintf("declared prev_hash %s does not match the preceding entry's entry_hash %s", e.PrevHash, expectedPrev),
			})
		}

		recomputed, err := ledger.RecomputeEntryHash(e)
		if err != nil {
			report.Valid = false
			report.Discrepancies = append(report.Discrepancies, Discrepancy{
				Index: i, Field: "entry_hash",
				Message: fmt.Sprintf("could not recompute entry_hash: %v", err),
			})
		} else if !canon.ConstantTimeEqualHex(recomputed, e.EntryHash) {
			report.Valid = false
			report.Discrepancies = append(report.Discrepancies, Discrepancy{
				Index: i, Field: "entry_hash",
				Message: fmt.Sprintf("recomputed entry_hash %s does not match stored %s", recomputed, e.EntryHash),
			})
		}

		expectedPrev = e.EntryHash
	}

	if !canon.ConstantTimeEqualHex(bundle.RootHash, expectedPrev) {
		report.Valid = false
		report.Discrepancies = append(report.Discrepancies, Discrepancy{
			Index: len(bundle.Entries), Field: "root_hash",
			Message: fmt.Sprintf("bundle root_hash %s does not match the last entry's entry_hash %s", bundle.RootHash, expectedPrev),
		})
	}

	return report
}
