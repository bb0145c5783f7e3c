package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	// Minimum password length
	MinPasswordLength = 8
	// Maximum password length
	MaxPasswordLength = 128
)

// Argon2id parameters, pinned as a testable invariant rather than left to
// library defaults.
const (
	argon2Time      = 3
	argon2MemoryKiB = 65536
	argon2Threads   = 4
	argon2SaltLen   = 16 // 128 bits
	argon2KeyLen    = 32 // 256 bits
)

// HashPassword derives an Argon2id hash encoded in PHC string format:
// $argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash>
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", fmt.Errorf("password must be at least %d characters long", MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return "", fmt.Errorf("password must be no more than %d characters long", MaxPasswordLength)
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argon2Time, argon2MemoryKiB, argon2Threads, argon2KeyLen)

	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedHash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argon2MemoryKiB, argon2Time, argon2Threads, encodedSalt, encodedHash), nil
}

// VerifyPassword verifies a password against an encoded hash. It also
// accepts the legacy "<salt_hex>:<sha256_hex>" format so existing accounts
// migrated from the predecessor scheme still authenticate; NeedsRehash
// reports when the stored hash should be upgraded.
func VerifyPassword(password, encoded string) bool {
	if strings.HasPrefix(encoded, "$argon2id$") {
		return verifyArgon2(password, encoded)
	}
	return verifyLegacySHA256(password, encoded)
}

// NeedsRehash reports whether a successfully-verified hash predates the
// current Argon2id scheme or parameters and should be regenerated.
func NeedsRehash(encoded string) bool {
	if !strings.HasPrefix(encoded, "$argon2id$") {
		return true
	}
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return true
	}
	var version int
	var memory, time, threads int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return true
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return true
	}
	return version != argon2.Version || memory != argon2MemoryKiB || time != argon2Time || threads != argon2Threads
}

func verifyArgon2(password, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return false
	}

	var memory, t, threads int
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &t, &threads); err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	actualHash := argon2.IDKey([]byte(password), salt, uint32(t), uint32(memory), uint8(threads), uint32(len(expectedHash)))
	return subtle.ConstantTimeCompare(actualHash, expectedHash) == 1
}

func verifyLegacySHA256(password, encoded string) bool {
	parts := strings.Split(encoded, ":")
	if len(parts) != 2 {
		return false
	}

	saltHex, expectedHashHex := parts[0], parts[1]
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false
	}

	h := sha256.New()
	h.Write(salt)
	h.Write([]byte(password))
	actualHashHex := hex.EncodeToString(h.Sum(nil))

	return subtle.ConstantTimeCompare([]byte(actualHashHex), []byte(expectedHashHex)) == 1
}
