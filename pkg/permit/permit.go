// Package permit defines the Permit Token interface surface (spec
// §4.8): a bearer credential describing what an actor is allowed to do
// and until when. Issuance and verification are collaborator concerns,
// never imported by pkg/kernel — a Permit observed on a request is
// ordinary request data to the kernel, not something it mints, checks
// the signature of, or treats specially in its own right.
package permit

import "time"

// Permit describes one bearer credential.
type Permit struct {
	Subject   string
	Scope     string
	ExpiresAt time.Time
	Proof     []byte
}

// Expired reports whether the permit's validity window has passed as
// of now.
func (p Permit) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// Issuer mints a signed token for a Permit.
type Issuer interface {
	Issue(p Permit) ([]byte, error)
}

// Verifier checks a token's signature and validity window, returning
// the Permit it attests to.
type Verifier interface {
	Verify(token []byte) (Permit, error)
}
