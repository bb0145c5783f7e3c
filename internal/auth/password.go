package auth

import (
	"strings"

	"ctp/utils"
)

// StrengthErrorCode is a machine-readable reason a password was rejected at
// set-time; login-time verification never applies these rules.
type StrengthErrorCode string

const (
	ErrTooShort            StrengthErrorCode = "PASSWORD_TOO_SHORT"
	ErrTooLong             StrengthErrorCode = "PASSWORD_TOO_LONG"
	ErrMissingCharClass    StrengthErrorCode = "PASSWORD_MISSING_CHARACTER_CLASS"
	ErrCommonPassword      StrengthErrorCode = "PASSWORD_COMMON"
	ErrForbiddenSequence   StrengthErrorCode = "PASSWORD_FORBIDDEN_SEQUENCE"
	ErrContainsIdentity    StrengthErrorCode = "PASSWORD_CONTAINS_IDENTITY"
	ErrTooFewDistinctChars StrengthErrorCode = "PASSWORD_TOO_FEW_DISTINCT_CHARS"
	ErrForbiddenWord       StrengthErrorCode = "PASSWORD_FORBIDDEN_WORD"
)

// StrengthError is returned by ValidateNewPassword.
type StrengthError struct {
	Code    StrengthErrorCode
	Message string
}

func (e *StrengthError) Error() string { return e.Message }

const minSetPasswordLength = 12

var commonPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "123456": {}, "12345678": {},
	"qwerty": {}, "letmein": {}, "admin123": {}, "welcome1": {},
	"changeme": {}, "iloveyou": {},
}

var forbiddenSequences = []string{
	"123456", "654321", "abcdef", "qwerty", "asdfgh",
}

// ValidateNewPassword applies the set-time strength rules. username and
// emailLocal are the identity fragments that must not appear in the
// password; forbiddenWords is a caller-supplied denylist (e.g. the site name).
func ValidateNewPassword(password, username, emailLocal string, forbiddenWords []string) error {
	if len(password) < minSetPasswordLength {
		return &StrengthError{ErrTooShort, "password must be at least 12 characters long"}
	}
	if len(password) > utils.MaxPasswordLength {
		return &StrengthError{ErrTooLong, "password must be no more than 128 characters long"}
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	distinct := make(map[rune]struct{})
	for _, r := range password {
		distinct[r] = struct{}{}
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		case strings.ContainsRune("!@#$%^&*()_+-=[]{}|;:,.<>?", r):
			hasSpecial = true
		}
	}
	if !(hasUpper && hasLower && hasDigit && hasSpecial) {
		return &StrengthError{ErrMissingCharClass, "password must contain upper, lower, digit and special characters"}
	}
	if len(distinct) <= 2 {
		return &StrengthError{ErrTooFewDistinctChars, "password must use more than 2 distinct characters"}
	}

	lower := strings.ToLower(password)
	if _, ok := commonPasswords[lower]; ok {
		return &StrengthError{ErrCommonPassword, "password is too common"}
	}
	for _, seq := range forbiddenSequences {
		if strings.Contains(lower, seq) {
			return &StrengthError{ErrForbiddenSequence, "password contains a forbidden sequence"}
		}
	}
	if username != "" && len(username) >= 3 && strings.Contains(lower, strings.ToLower(username)) {
		return &StrengthError{ErrContainsIdentity, "password must not contain the username"}
	}
	if emailLocal != "" && len(emailLocal) >= 3 && strings.Contains(lower, strings.ToLower(emailLocal)) {
		return &StrengthError{ErrContainsIdentity, "password must not contain the email address"}
	}
	for _, word := range forbiddenWords {
		if word != "" && strings.Contains(lower, strings.ToLower(word)) {
			return &StrengthError{ErrForbiddenWord, "password contains a forbidden word"}
		}
	}

	return nil
}

// IsLegacyHash reports whether a stored hash predates the Argon2id scheme
// (absence of the "$argon2" prefix); such hashes never verify and force a
// password reset.
func IsLegacyHash(stored string) bool {
	return !strings.HasPrefix(stored, "$argon2")
}

// VerifyLogin checks a password against a stored hash, refusing to
// authenticate against a legacy (pre-Argon2id) hash at all.
func VerifyLogin(password, stored string) bool {
	if IsLegacyHash(stored) {
		return false
	}
	return utils.VerifyPassword(password, stored)
}
