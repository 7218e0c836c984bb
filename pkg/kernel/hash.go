package kernel

import "github.com/kernelgate/governor/pkg/canon"

// canonHash canonically encodes and hashes an arbitrary JSON-shaped
// value, used for params_hash.
func canonHash(v interface{}) (string, error) {
	return canon.Hash(v)
}

// canonHashStrings hashes an ordered list of evidence references for
// evidence_hash; order is significant, so this does not sort.
func canonHashStrings(items []string) (string, error) {
	vals := make([]interface{}, len(items))
	for i, s := range items {
		vals[i] = s
	}
	return canon.Hash(vals)
}
