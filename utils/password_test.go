package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name        string
		password    string
		shouldError bool
	}{
		{name: "valid password", password: "password123", shouldError: false},
		{name: "short password", password: "123", shouldError: true},
		{name: "empty password", password: "", shouldError: true},
		{name: "very long password", password: strings.Repeat("a", 150), shouldError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashPassword(tt.password)
			if tt.shouldError {
				assert.Error(t, err)
				assert.Empty(t, hash)
				return
			}
			assert.NoError(t, err)
			assert.True(t, strings.HasPrefix(hash, "$argon2id$"))
			assert.True(t, VerifyPassword(tt.password, hash))
		})
	}
}

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("testpassword123")
	assert.NoError(t, err)

	tests := []struct {
		name     string
		password string
		hash     string
		expected bool
	}{
		{name: "correct password", password: "testpassword123", hash: hash, expected: true},
		{name: "wrong password", password: "wrongpassword", hash: hash, expected: false},
		{name: "empty hash", password: "testpassword123", hash: "", expected: false},
		{name: "malformed argon2 hash", password: "testpassword123", hash: "$argon2id$garbage", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, VerifyPassword(tt.password, tt.hash))
		})
	}
}

func TestVerifyPasswordLegacyFormat(t *testing.T) {
	// Constructed to match verifyLegacySHA256's own derivation
	// (sha256(salt || password)) so this is a behavioral check, not a
	// hand-computed fixture.
	saltHex := "abcd"
	salt, err := hex.DecodeString(saltHex)
	assert.NoError(t, err)

	h := sha256.New()
	h.Write(salt)
	h.Write([]byte("correcthorse"))
	legacy := saltHex + ":" + hex.EncodeToString(h.Sum(nil))

	assert.True(t, VerifyPassword("correcthorse", legacy))
	assert.False(t, VerifyPassword("wrongbattery", legacy))
}

func TestNeedsRehash(t *testing.T) {
	hash, err := HashPassword("testpassword123")
	assert.NoError(t, err)
	assert.False(t, NeedsRehash(hash))
	assert.True(t, NeedsRehash("abcd:deadbeef"))
	assert.True(t, NeedsRehash(""))
}

