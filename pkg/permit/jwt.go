package permit

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

// claims is the JWT payload a Permit is carried in: subject and
// expiry map onto the registered claims jwt.Parse already validates;
// scope is the one domain-specific addition.
type claims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope"`
}

// KeyProvider signs and exposes the public half of one Ed25519
// keypair. JWTIssuerVerifier.Verify works with any implementation;
// JWTIssuerVerifier.Issue signs only with a *MemoryKeyProvider and
// fails for any other provider (see privateKeyFor).
type KeyProvider interface {
	Sign(msg []byte) ([]byte, error)
	PublicKey() ed25519.PublicKey
}

// MemoryKeyProvider holds a generated or derived Ed25519 keypair in
// process memory. It is meant for development and single-process
// deployments, not for production key custody.
type MemoryKeyProvider struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

// NewMemoryKeyProvider generates a fresh random keypair.
func NewMemoryKeyProvider() (*MemoryKeyProvider, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("permit: generate keypair: %w", err)
	}
	return &MemoryKeyProvider{pub: pub, priv: priv}, nil
}

// DeriveKeyProvider deterministically derives an Ed25519 keypair from
// a seed and an info string via HKDF-SHA256, so the same (seed, info)
// pair always yields the same keypair — useful for deriving one
// kernel's signing key from a shared master secret without storing it
// separately.
func DeriveKeyProvider(seed []byte, info string) (*MemoryKeyProvider, error) {
	if info == "" {
		return nil, fmt.Errorf("permit: info must not be empty")
	}
	r := hkdf.New(sha256.New, seed, []byte("governor-permit-kdf"), []byte(info))
	tenantSeed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(r, tenantSeed); err != nil {
		return nil, fmt.Errorf("permit: hkdf derivation: %w", err)
	}
	priv := ed25519.NewKeyFromSeed(tenantSeed)
	pub := priv.Public().(ed25519.PublicKey)
	return &MemoryKeyProvider{pub: pub, priv: priv}, nil
}

func (m *MemoryKeyProvider) Sign(msg []byte) ([]byte, error) {
	return ed25519.Sign(m.priv, msg), nil
}

func (m *MemoryKeyProvider) PublicKey() ed25519.PublicKey {
	return m.pub
}

// JWTIssuerVerifier implements both Issuer and Verifier over one
// KeyProvider, encoding a Permit as a JWT signed with EdDSA.
type JWTIssuerVerifier struct {
	provider KeyProvider
}

// NewJWTIssuerVerifier wraps a KeyProvider as a permit Issuer/Verifier
// pair.
func NewJWTIssuerVerifier(p KeyProvider) *JWTIssuerVerifier {
	return &JWTIssuerVerifier{provider: p}
}

// Issue encodes p as an EdDSA-signed JWT.
func (j *JWTIssuerVerifier) Issue(p Permit) ([]byte, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Subject,
			ExpiresAt: jwt.NewNumericDate(p.ExpiresAt),
		},
		Scope: p.Scope,
	})
	signed, err := token.SignedString(j.privateKeyFor())
	if err != nil {
		return nil, fmt.Errorf("permit: sign token: %w", err)
	}
	return []byte(signed), nil
}

// privateKeyFor exists only so Issue can call jwt's SignedString,
// which for EdDSA requires an ed25519.PrivateKey rather than the
// KeyProvider.Sign(msg) interface; JWTIssuerVerifier therefore only
// accepts MemoryKeyProvider-backed providers for issuance today.
func (j *JWTIssuerVerifier) privateKeyFor() ed25519.PrivateKey {
	mk, ok := j.provider.(*MemoryKeyProvider)
	if !ok {
		return nil
	}
	return mk.priv
}

// Verify parses and validates token, checking the EdDSA signature
// against the provider's public key and the standard expiry claim.
func (j *JWTIssuerVerifier) Verify(token []byte) (Permit, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(string(token), &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("permit: unexpected signing method %v", t.Header["alg"])
		}
		return j.provider.PublicKey(), nil
	})
	if err != nil {
		return Permit{}, fmt.Errorf("permit: verify token: %w", err)
	}
	if !parsed.Valid {
		return Permit{}, fmt.Errorf("permit: token is not valid")
	}

	var expiresAt time.Time
	if c.ExpiresAt != nil {
		expiresAt = c.ExpiresAt.Time
	}
	return Permit{
		Subject:   c.Subject,
		Scope:     c.Scope,
		ExpiresAt: expiresAt,
		Proof:     token,
	}, nil
}
