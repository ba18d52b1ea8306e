package security

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasherRoundTrip(t *testing.T) {
	hasher, err := NewBcryptHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	hash, err := hasher.Hash("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !hasher.Compare(hash, "correct horse") {
		t.Fatal("matching password must compare true")
	}
	if hasher.Compare(hash, "wrong horse") {
		t.Fatal("wrong password must compare false")
	}
}

func TestBcryptHasherClampsCost(t *testing.T) {
	hasher, err := NewBcryptHasher(99)
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	hash, err := hasher.Hash("pw-pw-pw")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatalf("cost: %v", err)
	}
	if cost != bcrypt.DefaultCost {
		t.Fatalf("expected clamped cost %d, got %d", bcrypt.DefaultCost, cost)
	}
}

func TestDummyCompareDoesNotPanic(t *testing.T) {
	hasher, err := NewBcryptHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	hasher.DummyCompare("anything")
	hasher.DummyCompare("")
}

func TestHashBackupCodeCanonicalizes(t *testing.T) {
	if HashBackupCode("a1b2c3d4") != HashBackupCode("  A1B2C3D4 ") {
		t.Fatal("case and whitespace must not change the hash")
	}
	if HashBackupCode("a1b2c3d4") == HashBackupCode("a1b2c3d5") {
		t.Fatal("different codes must hash differently")
	}
}

func TestNewBackupCodesFormat(t *testing.T) {
	codes, err := NewBackupCodes(10)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(codes) != 10 {
		t.Fatalf("expected 10 codes, got %d", len(codes))
	}
	seen := make(map[string]bool)
	for _, code := range codes {
		if len(code) != 8 {
			t.Fatalf("code %q is not 8 chars", code)
		}
		if code != strings.ToUpper(code) {
			t.Fatalf("code %q is not upper-case", code)
		}
		if seen[code] {
			t.Fatalf("duplicate code %q", code)
		}
		seen[code] = true
	}
}

func TestHashRefreshTokenDependsOnPepper(t *testing.T) {
	a := HashRefreshToken("token", "pepper-a")
	b := HashRefreshToken("token", "pepper-b")
	if a == b {
		t.Fatal("different peppers must yield different hashes")
	}
	if a != HashRefreshToken("token", "pepper-a") {
		t.Fatal("hash must be deterministic for the same pepper")
	}
}
