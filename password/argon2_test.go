package password

import (
	"strings"
	"testing"
)

func newTestHasher(t *testing.T, pepper string) *Hasher {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Memory = minMemoryKB // keep tests fast
	cfg.Pepper = pepper

	h, err := NewHasher(cfg)
	if err != nil {
		t.Fatalf("new hasher failed: %v", err)
	}
	return h
}

func TestHashVerifyRoundTrip(t *testing.T) {
	h := newTestHasher(t, "")

	digest, err := h.Hash("StrongPassword123!")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if !strings.HasPrefix(digest, "$argon2id$") {
		t.Fatalf("unexpected digest format: %q", digest)
	}

	ok, err := h.Verify("StrongPassword123!", digest)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !ok {
		t.Fatal("correct password rejected")
	}

	ok, err = h.Verify("WrongPassword123!", digest)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if ok {
		t.Fatal("wrong password accepted")
	}
}

func TestHashesAreSalted(t *testing.T) {
	h := newTestHasher(t, "")

	first, err := h.Hash("StrongPassword123!")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	second, err := h.Hash("StrongPassword123!")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if first == second {
		t.Fatal("two hashes of the same password are identical")
	}
}

func TestPepperChangesDigestAcceptance(t *testing.T) {
	peppered := newTestHasher(t, "process-pepper")
	unpeppered := newTestHasher(t, "")

	digest, err := peppered.Hash("StrongPassword123!")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}

	ok, err := unpeppered.Verify("StrongPassword123!", digest)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if ok {
		t.Fatal("digest verified without the pepper")
	}

	ok, err = peppered.Verify("StrongPassword123!", digest)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !ok {
		t.Fatal("digest rejected with the correct pepper")
	}
}

func TestVerifyRejectsMalformedDigests(t *testing.T) {
	h := newTestHasher(t, "")

	for _, digest := range []string{
		"",
		"plaintext",
		"$bcrypt$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
	} {
		if _, err := h.Verify("whatever", digest); err == nil {
			t.Fatalf("digest %q accepted", digest)
		}
	}
}

func TestIsStrong(t *testing.T) {
	cases := []struct {
		password string
		ok       bool
		wantErrs int
	}{
		{"StrongPassword123!", true, 0},
		{"short1A!", true, 0},
		{"weak", false, 4},
		{"alllowercase1!", false, 1},
		{"ALLUPPERCASE1!", false, 1},
		{"NoDigitsHere!", false, 1},
		{"NoSpecials123", false, 1},
		{"", false, 5},
	}

	for _, tc := range cases {
		ok, errs := IsStrong(tc.password)
		if ok != tc.ok {
			t.Fatalf("IsStrong(%q) = %v, want %v (errors: %v)", tc.password, ok, tc.ok, errs)
		}
		if len(errs) != tc.wantErrs {
			t.Fatalf("IsStrong(%q) returned %d violations, want %d: %v", tc.password, len(errs), tc.wantErrs, errs)
		}
	}
}

func TestNewHasherRejectsWeakParameters(t *testing.T) {
	cases := []Config{
		{Memory: 1024, Time: 3, Parallelism: 2, SaltLength: 16, KeyLength: 32},
		{Memory: minMemoryKB, Time: 0, Parallelism: 2, SaltLength: 16, KeyLength: 32},
		{Memory: minMemoryKB, Time: 3, Parallelism: 0, SaltLength: 16, KeyLength: 32},
		{Memory: minMemoryKB, Time: 3, Parallelism: 2, SaltLength: 8, KeyLength: 32},
		{Memory: minMemoryKB, Time: 3, Parallelism: 2, SaltLength: 16, KeyLength: 8},
	}
	for i, cfg := range cases {
		if _, err := NewHasher(cfg); err == nil {
			t.Fatalf("case %d: expected parameter validation error", i)
		}
	}
}
