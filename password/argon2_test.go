package password

import (
	"strings"
	"testing"
)

func newTestArgon2(t *testing.T) *Argon2 {
	t.Helper()

	a, err := NewArgon2(Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	return a
}

func TestHashVerifyRoundTrip(t *testing.T) {
	a := newTestArgon2(t)

	hash, err := a.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("hash = %q, want PHC argon2id prefix", hash)
	}

	match, err := a.Verify("correct horse battery staple", hash)
	if err != nil || !match {
		t.Fatalf("Verify = %v, %v; want true, nil", match, err)
	}

	match, err = a.Verify("wrong password", hash)
	if err != nil || match {
		t.Fatalf("Verify wrong = %v, %v; want false, nil", match, err)
	}
}

func TestHashProducesUniqueSalts(t *testing.T) {
	a := newTestArgon2(t)

	h1, err := a.Hash("same password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	h2, err := a.Hash("same password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if h1 == h2 {
		t.Fatal("two hashes of the same password are identical")
	}
}

func TestVerifyRejectsMalformedHashes(t *testing.T) {
	a := newTestArgon2(t)

	bad := []string{
		"",
		"plainstring",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$",
	}

	for _, h := range bad {
		if _, err := a.Verify("password", h); err == nil {
			t.Fatalf("Verify accepted malformed hash %q", h)
		}
	}
}

func TestNeedsUpgrade(t *testing.T) {
	weak := newTestArgon2(t)
	hash, err := weak.Hash("password123")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	upgrade, err := weak.NeedsUpgrade(hash)
	if err != nil || upgrade {
		t.Fatalf("NeedsUpgrade same params = %v, %v; want false, nil", upgrade, err)
	}

	strong, err := NewArgon2(Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}

	upgrade, err = strong.NeedsUpgrade(hash)
	if err != nil || !upgrade {
		t.Fatalf("NeedsUpgrade weaker hash = %v, %v; want true, nil", upgrade, err)
	}

	// The stronger hasher still verifies the weak hash with its embedded
	// parameters.
	match, err := strong.Verify("password123", hash)
	if err != nil || !match {
		t.Fatalf("Verify with embedded params = %v, %v; want true, nil", match, err)
	}
}

func TestNewArgon2EnforcesFloors(t *testing.T) {
	bad := []Config{
		{Memory: 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		{Memory: 8192, Time: 0, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		{Memory: 8192, Time: 1, Parallelism: 0, SaltLength: 16, KeyLength: 32},
		{Memory: 8192, Time: 1, Parallelism: 1, SaltLength: 8, KeyLength: 32},
		{Memory: 8192, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 8},
	}

	for i, cfg := range bad {
		if _, err := NewArgon2(cfg); err == nil {
			t.Fatalf("config %d accepted below floor", i)
		}
	}
}
