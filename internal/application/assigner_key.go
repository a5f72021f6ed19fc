package application

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	ErrInvalidKeyHash         = errors.New("invalid assigner key hash format")
	ErrIncompatibleKeyVersion = errors.New("incompatible assigner key hash version")
	ErrKeyMismatch            = errors.New("assigner key does not match")
)

type Argon2idParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

var DefaultArgon2idParams = Argon2idParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// CreateKeyHash derives an encoded argon2id hash of key.
func CreateKeyHash(key string, params Argon2idParams) (string, error) {
	if key == "" {
		return "", fmt.Errorf("assigner key must not be empty")
	}
	salt := make([]byte, params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(key), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)

	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(hash)

	// $argon2id$v=19$m=...,t=...,p=...$salt$hash
	format := "$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s"
	return fmt.Sprintf(format, argon2.Version, params.Memory, params.Iterations, params.Parallelism, b64Salt, b64Hash), nil
}

// VerifyKey reports whether key matches encodedHash.
func VerifyKey(encodedHash, key string) error {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return ErrInvalidKeyHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return ErrInvalidKeyHash
	}
	if version != argon2.Version {
		return ErrIncompatibleKeyVersion
	}

	var params Argon2idParams
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		return ErrInvalidKeyHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return ErrInvalidKeyHash
	}
	decodedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(decodedHash) == 0 {
		return ErrInvalidKeyHash
	}

	comparisonHash := argon2.IDKey([]byte(key), salt, params.Iterations, params.Memory, params.Parallelism, uint32(len(decodedHash)))
	if subtle.ConstantTimeCompare(decodedHash, comparisonHash) == 1 {
		return nil
	}
	return ErrKeyMismatch
}

// AssignerAuthenticator resolves a presented assigner key to the assigner principal.
type AssignerAuthenticator struct {
	hash string
}

// NewAssignerAuthenticator validates the encoded hash up front so that a
// misconfigured server fails at startup.
func NewAssignerAuthenticator(encodedHash string) (*AssignerAuthenticator, error) {
	encodedHash = strings.TrimSpace(encodedHash)
	if err := VerifyKey(encodedHash, ""); err != nil && !errors.Is(err, ErrKeyMismatch) {
		return nil, err
	}
	return &AssignerAuthenticator{hash: encodedHash}, nil
}

// Authenticate returns the assigner principal when key matches, ErrUnauthorized otherwise.
func (a *AssignerAuthenticator) Authenticate(ctx context.Context, key string) (Principal, error) {
	if a == nil || a.hash == "" {
		return Principal{}, ErrUnauthorized
	}
	if err := ctx.Err(); err != nil {
		return Principal{}, err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return Principal{}, ErrUnauthorized
	}
	if err := VerifyKey(a.hash, key); err != nil {
		return Principal{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	return Principal{ID: "assigner", Assigner: true}, nil
}
