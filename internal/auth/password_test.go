package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateNewPassword(t *testing.T) {
	tests := []struct {
		name       string
		password   string
		username   string
		emailLocal string
		forbidden  []string
		wantCode   StrengthErrorCode
	}{
		{name: "acceptable password", password: "Tr0ub4dor&Zebra!", username: "alice", emailLocal: "alice"},
		{name: "too short", password: "Ab1!aaaa", wantCode: ErrTooShort},
		{name: "missing character class", password: "alllowercase12345", wantCode: ErrMissingCharClass},
		{name: "forbidden sequence", password: "MyQwerty123!Pass", wantCode: ErrForbiddenSequence},
		{name: "contains username", password: "Alice'sSecret123!", username: "alice", wantCode: ErrContainsIdentity},
		{name: "contains email local", password: "Bob12345Secret!XX", emailLocal: "bob12345", wantCode: ErrContainsIdentity},
		{name: "forbidden word", password: "MyCtpPlatform123!", forbidden: []string{"ctpplatform"}, wantCode: ErrForbiddenWord},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNewPassword(tt.password, tt.username, tt.emailLocal, tt.forbidden)
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			strengthErr, ok := err.(*StrengthError)
			assert.True(t, ok)
			assert.Equal(t, tt.wantCode, strengthErr.Code)
		})
	}
}

func TestIsLegacyHash(t *testing.T) {
	assert.True(t, IsLegacyHash("deadbeef:cafebabe"))
	assert.False(t, IsLegacyHash("$argon2id$v=19$m=65536,t=3,p=4$salt$hash"))
}

func TestVerifyLoginRejectsLegacyHash(t *testing.T) {
	assert.False(t, VerifyLogin("anything", "deadbeef:cafebabe"))
}
