package fairness_test

import (
	"testing"

	"github.com/miner1qaz-ops/Mochi-sub000/internal/fairness"
)

func TestCommitmentStable(t *testing.T) {
	a := fairness.New("dev-server-seed")

	want := "3f2533d6fe66b897c20a359ad5704a07886658e75369458ff83e2fce0df4d549"
	if a.Commitment() != want {
		t.Errorf("commitment = %s, want %s", a.Commitment(), want)
	}

	if a.Commitment() != a.Commitment() {
		t.Error("commitment should be constant across calls")
	}
}

func TestDeriveNonce(t *testing.T) {
	a := fairness.New("dev-server-seed")

	nonce := a.DeriveNonce("abc")
	if nonce != "347d096388999efd" {
		t.Errorf("nonce = %s, want 347d096388999efd", nonce)
	}

	if len(nonce) != fairness.NonceHexLen {
		t.Errorf("nonce length = %d, want %d", len(nonce), fairness.NonceHexLen)
	}

	if a.DeriveNonce("abc") != nonce {
		t.Error("nonce should be deterministic for the same caller seed")
	}

	if a.DeriveNonce("abd") == nonce {
		t.Error("different caller seeds should derive different nonces")
	}

	// Empty caller seed is opaque but valid.
	empty := a.DeriveNonce("")
	if len(empty) != fairness.NonceHexLen {
		t.Errorf("empty-seed nonce length = %d, want %d", len(empty), fairness.NonceHexLen)
	}
}

func TestRevealProof(t *testing.T) {
	a := fairness.New("dev-server-seed")

	nonce := a.DeriveNonce("abc")
	proof := a.RevealProof("abc", nonce)
	want := "04b2a5bc2ddc77a27bed7ccc4af794ffcfce3de3e8cc31ca1b2f86e61eb0d64a"
	if proof != want {
		t.Errorf("proof = %s, want %s", proof, want)
	}
}

func TestSeedStreamDeterministic(t *testing.T) {
	a := fairness.New("dev-server-seed")
	nonce := a.DeriveNonce("abc")

	r1 := a.SeedStream("abc", nonce)
	r2 := a.SeedStream("abc", nonce)

	for i := 0; i < 64; i++ {
		v1, v2 := r1.Float64(), r2.Float64()
		if v1 != v2 {
			t.Fatalf("draw %d diverged: %v != %v", i, v1, v2)
		}
		if v1 < 0 || v1 >= 1 {
			t.Fatalf("draw %d out of [0,1): %v", i, v1)
		}
	}
}

func TestSeedStreamVariesWithInputs(t *testing.T) {
	a := fairness.New("dev-server-seed")
	b := fairness.New("another-seed")

	nonce := a.DeriveNonce("abc")

	same := 0
	r1 := a.SeedStream("abc", nonce)
	r2 := b.SeedStream("abc", nonce)
	for i := 0; i < 16; i++ {
		if r1.Float64() == r2.Float64() {
			same++
		}
	}
	if same == 16 {
		t.Error("different secrets produced identical trajectories")
	}
}
