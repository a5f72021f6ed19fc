package application

import (
	"context"
	"errors"
	"strings"
	"testing"
)

var testArgon2idParams = Argon2idParams{
	Memory:      1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  8,
	KeyLength:   16,
}

func TestCreateAndVerifyKey(t *testing.T) {
	t.Parallel()

	hash, err := CreateKeyHash("s3cret-key", testArgon2idParams)
	if err != nil {
		t.Fatalf("CreateKeyHash returned error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Fatalf("unexpected hash encoding %q", hash)
	}

	if err := VerifyKey(hash, "s3cret-key"); err != nil {
		t.Fatalf("VerifyKey returned error for matching key: %v", err)
	}
	if err := VerifyKey(hash, "other"); !errors.Is(err, ErrKeyMismatch) {
		t.Fatalf("expected ErrKeyMismatch, got %v", err)
	}

	again, _ := CreateKeyHash("s3cret-key", testArgon2idParams)
	if again == hash {
		t.Fatalf("expected distinct salts per hash")
	}

	if _, err := CreateKeyHash("", testArgon2idParams); err == nil {
		t.Fatalf("expected empty key to be rejected")
	}
}

func TestVerifyKeyRejectsMalformedHashes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		hash string
		want error
	}{
		{"", ErrInvalidKeyHash},
		{"$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA", ErrInvalidKeyHash},
		{"$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$aGFzaA", ErrIncompatibleKeyVersion},
		{"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA", ErrInvalidKeyHash},
		{"$argon2id$v=19$m=1024,t=1,p=1$!!$aGFzaA", ErrInvalidKeyHash},
	}
	for _, tc := range tests {
		if err := VerifyKey(tc.hash, "key"); !errors.Is(err, tc.want) {
			t.Fatalf("VerifyKey(%q) = %v, want %v", tc.hash, err, tc.want)
		}
	}
}

func TestAssignerAuthenticator(t *testing.T) {
	t.Parallel()

	hash, err := CreateKeyHash("assign-me", testArgon2idParams)
	if err != nil {
		t.Fatalf("CreateKeyHash returned error: %v", err)
	}

	auth, err := NewAssignerAuthenticator(hash)
	if err != nil {
		t.Fatalf("NewAssignerAuthenticator returned error: %v", err)
	}

	ctx := context.Background()
	principal, err := auth.Authenticate(ctx, "assign-me")
	if err != nil || !principal.Assigner {
		t.Fatalf("expected assigner principal, got %+v err=%v", principal, err)
	}
	if _, err := auth.Authenticate(ctx, "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for wrong key, got %v", err)
	}
	if _, err := auth.Authenticate(ctx, " "); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for blank key, got %v", err)
	}

	if _, err := NewAssignerAuthenticator("not-a-hash"); !errors.Is(err, ErrInvalidKeyHash) {
		t.Fatalf("expected ErrInvalidKeyHash, got %v", err)
	}

	var disabled *AssignerAuthenticator
	if _, err := disabled.Authenticate(ctx, "assign-me"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected nil authenticator to reject, got %v", err)
	}
}
