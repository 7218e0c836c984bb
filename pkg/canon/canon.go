// Package canon provides deterministic canonical encoding and SHA-256
// hashing for the audit ledger. Every hash the kernel ever computes is
// derived from the byte form this package produces — never from a
// general-purpose JSON marshaler's default (map-order-dependent) output.
package canon

import (
	"bytes"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Bytes returns the canonical encoding of v: mapping keys sorted
// lexicographically, no insignificant whitespace, UTF-8 strings, and no
// floating-point values anywhere in the tree. Absent/null fields are
// encoded as the JSON null marker rather than omitted, so that a struct
// with a nil pointer field hashes differently from one missing the field
// entirely.
func Bytes(v interface{}) ([]byte, error) {
	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canon: pre-marshal failed: %w", err)
	}

	var generic interface{}
	dec := json.NewDecoder(bytes.NewReader(intermediate))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canon: intermediate decode failed: %w", err)
	}

	var buf bytes.Buffer
	if err := encodeValue(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// String is Bytes rendered as a string, for logging and test fixtures.
func String(v interface{}) (string, error) {
	b, err := Bytes(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// encodeValue recursively emits the canonical form. It rejects
// json.Number values that are not integral, per the spec's "floating-point
// values MUST NOT appear in hashed payloads" rule.
func encodeValue(buf *bytes.Buffer, v interface{}) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case json.Number:
		return encodeNumber(buf, t)
	case string:
		return encodeString(buf, t)
	case []interface{}:
		buf.WriteByte('[')
		for i, elem := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := encodeValue(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	default:
		return fmt.Errorf("canon: unsupported value type %T", v)
	}
}

func encodeNumber(buf *bytes.Buffer, n json.Number) error {
	// Reject anything that isn't representable as a plain integer: no
	// exponent, no decimal point. Floating-point values must be widened
	// to integers or strings by the caller before they reach hashed
	// payloads (spec requirement).
	s := n.String()
	for i, r := range s {
		if r == '-' && i == 0 {
			continue
		}
		if r < '0' || r > '9' {
			return fmt.Errorf("canon: non-integer numeric %q is not permitted in hashed payloads", s)
		}
	}
	buf.WriteString(s)
	return nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("canon: string encode failed: %w", err)
	}
	buf.Write(b)
	return nil
}

// SHA256Hex returns the lowercase hex SHA-256 digest of b.
func SHA256Hex(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// Hash canonicalizes v and returns its hex SHA-256 digest.
func Hash(v interface{}) (string, error) {
	b, err := Bytes(v)
	if err != nil {
		return "", err
	}
	return SHA256Hex(b), nil
}

// ConstantTimeEqualHex compares two hex-encoded hash strings in constant
// time with respect to their contents (length differences still short
// circuit, as no fixed-size hash comparison can hide a length mismatch
// cheaply, but equal-length inputs are compared without early exit).
func ConstantTimeEqualHex(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// GenesisHash is the prev_hash of the first ledger entry: 64 zero nibbles.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

func init() {
	// GenesisHash must be exactly 64 hex characters; guard against
	// accidental edits to the literal above.
	if len(GenesisHash) != 64 {
		panic(fmt.Sprintf("canon: GenesisHash literal has %d characters, want 64", len(GenesisHash)))
	}
}
