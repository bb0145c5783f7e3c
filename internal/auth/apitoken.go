package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"ctp/consts"
)

// GenerateAPIToken mints a new cleartext "ctp_<32 url-safe base64 chars>"
// token plus the values persisted against it: the non-secret prefix and
// the SHA-256 hash. The cleartext is returned to the caller exactly once.
func GenerateAPIToken() (cleartext, prefix, hash string, err error) {
	raw := make([]byte, 24) // base64.RawURLEncoding of 24 bytes = 32 chars
	if _, err = rand.Read(raw); err != nil {
		return "", "", "", fmt.Errorf("failed to generate token entropy: %w", err)
	}

	cleartext = consts.ApiTokenPrefix + base64.RawURLEncoding.EncodeToString(raw)
	if len(cleartext) < consts.ApiTokenPrefixLength {
		return "", "", "", fmt.Errorf("generated token shorter than prefix length")
	}

	prefix = cleartext[:consts.ApiTokenPrefixLength]
	hash = HashAPIToken(cleartext)
	return cleartext, prefix, hash, nil
}
