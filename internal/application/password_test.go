package application

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

var fastArgon2Params = Argon2idParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

func TestArgon2idHasher(t *testing.T) {
	t.Parallel()

	hasher := NewArgon2idHasher(fastArgon2Params)
	hash, err := hasher.Hash("correct horse")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	if err := hasher.Verify(hash, "correct horse"); err != nil {
		t.Fatalf("expected password to verify, got %v", err)
	}
	if err := hasher.Verify(hash, "wrong horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	other, err := hasher.Hash("correct horse")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if other == hash {
		t.Fatalf("expected distinct salts per hash")
	}
}

func TestVerifyPassword_Bcrypt(t *testing.T) {
	t.Parallel()

	legacy, err := bcrypt.GenerateFromPassword([]byte("legacy-secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	if err := VerifyPassword(string(legacy), "legacy-secret"); err != nil {
		t.Fatalf("expected bcrypt hash to verify, got %v", err)
	}
	if err := VerifyPassword(string(legacy), "nope"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	t.Parallel()

	for _, hash := range []string{"", "plain", "$argon2i$v=19$m=1,t=1,p=1$aa$bb", "$argon2id$v=19$garbage$aa$bb"} {
		if err := VerifyPassword(hash, "x"); !errors.Is(err, ErrInvalidPasswordHash) {
			t.Fatalf("hash %q: expected ErrInvalidPasswordHash, got %v", hash, err)
		}
	}
	if err := VerifyPassword("$argon2id$v=16$m=1,t=1,p=1$aa$bb", "x"); !errors.Is(err, ErrIncompatiblePasswordVersion) {
		t.Fatalf("expected ErrIncompatiblePasswordVersion, got %v", err)
	}
}
