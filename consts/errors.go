package consts

import "errors"

// Sentinel errors the internal packages return and callers match on with
// errors.Is. HTTP handlers translate them into internal/apierr codes, which
// carry the status code and a stable machine-readable code string.
var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrSessionExpired       = errors.New("session expired")
	ErrTokenRevoked         = errors.New("token revoked")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrNotFound             = errors.New("record not found")
	ErrAlreadyExists        = errors.New("record already exists")
	ErrConflict             = errors.New("conflict")
	ErrValidation           = errors.New("validation failed")
	ErrInternal             = errors.New("internal server error")
)
