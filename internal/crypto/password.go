package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

var ErrPasswordMismatch = errors.New("password does not match")

// argon2Params are the tuning parameters for password hashing. time=1,
// memory=64MiB, threads=4 follows the OWASP-recommended floor for
// interactive login paths.
const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2KeyLen  = 32
	saltLen       = 16
)

// HashPassword returns an encoded Argon2id hash in the form
// "argon2id:<time>:<memory>:<threads>:<salt-b64>:<hash-b64>".
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	return fmt.Sprintf("argon2id:%d:%d:%d:%s:%s",
		argon2Time, argon2Memory, argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyPassword reports whether password matches the encoded hash produced
// by HashPassword. Returns ErrPasswordMismatch on a clean mismatch and a
// distinct error on a malformed hash, so callers can tell "wrong password"
// from "corrupt data" in logs without leaking that distinction to the user.
func VerifyPassword(encoded, password string) error {
	var version string
	var time, threads uint32
	var memory uint32

	parts := strings.Split(encoded, ":")
	if len(parts) != 6 {
		return fmt.Errorf("malformed password hash")
	}
	version = parts[0]
	if version != "argon2id" {
		return fmt.Errorf("unsupported password hash version %q", version)
	}
	if _, err := fmt.Sscanf(parts[1], "%d", &time); err != nil {
		return fmt.Errorf("malformed password hash: %w", err)
	}
	if _, err := fmt.Sscanf(parts[2], "%d", &memory); err != nil {
		return fmt.Errorf("malformed password hash: %w", err)
	}
	if _, err := fmt.Sscanf(parts[3], "%d", &threads); err != nil {
		return fmt.Errorf("malformed password hash: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return fmt.Errorf("malformed password hash: %w", err)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return fmt.Errorf("malformed password hash: %w", err)
	}

	got := argon2.IDKey([]byte(password), salt, time, memory, uint8(threads), uint32(len(want)))

	if subtle.ConstantTimeCompare(got, want) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}
