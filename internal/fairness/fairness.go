// Package fairness implements the commit-reveal randomness scheme behind
// pack generation. The server seed is fixed at startup and only its SHA-256
// hash is published; once the seed is disclosed, any caller can recompute a
// session's nonce, proof, and full RNG trajectory from their own seed.
package fairness

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math/rand/v2"
)

// NonceHexLen is the length of a derived nonce in hex characters.
const NonceHexLen = 16

// Authority owns the process-wide server seed and its published commitment.
// Rotating the seed invalidates reproducibility of past sessions, so the
// commitment never changes during a process lifetime.
type Authority struct {
	secret     string
	commitment string
}

// New creates an Authority around the configured server seed.
func New(secret string) *Authority {
	sum := sha256.Sum256([]byte(secret))
	return &Authority{
		secret:     secret,
		commitment: hex.EncodeToString(sum[:]),
	}
}

// Commitment returns the published SHA-256 hash of the server seed.
func (a *Authority) Commitment() string {
	return a.commitment
}

// Secret returns the server seed. Exposed for operator disclosure after a
// rotation, never over the public API while the seed is live.
func (a *Authority) Secret() string {
	return a.secret
}

// DeriveNonce binds a caller seed to the published commitment. It is a pure
// function of (commitment, callerSeed); the empty seed is valid.
func (a *Authority) DeriveNonce(callerSeed string) string {
	sum := sha256.Sum256([]byte(a.commitment + ":" + callerSeed))
	return hex.EncodeToString(sum[:])[:NonceHexLen]
}

// RevealProof returns the full hex digest a caller verifies once the server
// seed is disclosed.
func (a *Authority) RevealProof(callerSeed, nonce string) string {
	return hex.EncodeToString(a.streamKey(callerSeed, nonce))
}

// SeedStream returns the deterministic generator for one pack roll. The
// first 16 bytes of SHA256(secret:callerSeed:nonce), big-endian, seed a PCG
// source from math/rand/v2; each draw is one Float64() in [0,1). Same
// inputs always yield the same trajectory.
func (a *Authority) SeedStream(callerSeed, nonce string) *rand.Rand {
	key := a.streamKey(callerSeed, nonce)
	hi := binary.BigEndian.Uint64(key[0:8])
	lo := binary.BigEndian.Uint64(key[8:16])
	return rand.New(rand.NewPCG(hi, lo))
}

func (a *Authority) streamKey(callerSeed, nonce string) []byte {
	sum := sha256.Sum256([]byte(a.secret + ":" + callerSeed + ":" + nonce))
	return sum[:]
}
