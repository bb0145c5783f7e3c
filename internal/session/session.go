// Package session implements the session store (C3): device-scoped login
// sessions with refresh-token rotation, backed by the GORM Session table.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"ctp/consts"
	"ctp/database"
	"ctp/internal/auth"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Issued is the pair of cleartext tokens returned to a caller exactly once.
type Issued struct {
	Sid              string
	AccessToken      string
	RefreshToken     string
	ExpiresAt        time.Time
	RefreshExpiresAt time.Time
}

func randomToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Create opens a new session for user on one device, returning the
// cleartext access/refresh tokens; only their hashes are persisted.
func Create(ctx context.Context, db *gorm.DB, userID int, ip, userAgent string, expiresAt, refreshExpiresAt time.Time) (*Issued, error) {
	accessToken, err := randomToken()
	if err != nil {
		return nil, err
	}
	refreshToken, err := randomToken()
	if err != nil {
		return nil, err
	}

	sid := uuid.NewString()
	refreshHash := auth.HashAPIToken(refreshToken)
	session := &database.Session{
		UserID:           userID,
		Sid:              sid,
		SessionIDHash:    auth.HashAPIToken(accessToken),
		RefreshTokenHash: &refreshHash,
		IPAddress:        ip,
		UserAgent:        userAgent,
		LastSeenAt:       time.Now(),
		ExpiresAt:        &expiresAt,
		RefreshExpiresAt: &refreshExpiresAt,
	}

	if err := db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &Issued{
		Sid:              sid,
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		ExpiresAt:        expiresAt,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}

// FindActiveByAccessHash looks up a live session by its access-token hash.
func FindActiveByAccessHash(ctx context.Context, db *gorm.DB, hash string) (*database.Session, error) {
	return findActive(ctx, db, "session_id_hash = ?", hash)
}

// FindActiveByRefreshHash looks up a live session by its refresh-token hash.
func FindActiveByRefreshHash(ctx context.Context, db *gorm.DB, hash string) (*database.Session, error) {
	return findActive(ctx, db, "refresh_token_hash = ?", hash)
}

func findActive(ctx context.Context, db *gorm.DB, clause string, arg any) (*database.Session, error) {
	var s database.Session
	if err := db.WithContext(ctx).Where(clause, arg).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, consts.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if s.RevokedAt != nil || s.EndedAt != nil {
		return nil, consts.ErrNotFound
	}
	if !s.IsActive(time.Now()) {
		return nil, consts.ErrSessionExpired
	}
	return &s, nil
}

// Refresh rotates the refresh token bound to refreshHash, bumping the
// rotation counter so a second call with the same (now stale) hash fails.
// It is a single-row conditional update, making reuse-after-rotation
// atomic: only the caller racing against the row's *current* refresh hash
// wins.
func Refresh(ctx context.Context, db *gorm.DB, refreshHash, newIP string) (*Issued, error) {
	session, err := FindActiveByRefreshHash(ctx, db, refreshHash)
	if err != nil {
		return nil, err
	}

	newAccess, err := randomToken()
	if err != nil {
		return nil, err
	}
	newRefresh, err := randomToken()
	if err != nil {
		return nil, err
	}
	newAccessHash := auth.HashAPIToken(newAccess)
	newRefreshHash := auth.HashAPIToken(newRefresh)

	result := db.WithContext(ctx).Model(&database.Session{}).
		Where("id = ? AND refresh_token_hash = ?", session.ID, refreshHash).
		Updates(map[string]any{
			"session_id_hash":    newAccessHash,
			"refresh_token_hash": newRefreshHash,
			"refresh_counter":    gorm.Expr("refresh_counter + 1"),
			"last_seen_at":       time.Now(),
			"ip_address":         newIP,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to rotate refresh token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// Someone else already rotated this refresh token: reuse.
		return nil, consts.ErrTokenRevoked
	}

	return &Issued{
		Sid:              session.Sid,
		AccessToken:      newAccess,
		RefreshToken:     newRefresh,
		ExpiresAt:        *session.ExpiresAt,
		RefreshExpiresAt: *session.RefreshExpiresAt,
	}, nil
}

// End marks a session terminated by its own device (logout), not revoked.
func End(ctx context.Context, db *gorm.DB, sid string) error {
	now := time.Now()
	return db.WithContext(ctx).Model(&database.Session{}).
		Where("sid = ? AND ended_at IS NULL", sid).
		Update("ended_at", now).Error
}

// Revoke forcibly terminates a session (admin action, compromise response).
func Revoke(ctx context.Context, db *gorm.DB, sid string) error {
	now := time.Now()
	return db.WithContext(ctx).Model(&database.Session{}).
		Where("sid = ? AND revoked_at IS NULL", sid).
		Update("revoked_at", now).Error
}

// RevokeAllUserSessions revokes every active session for userID, optionally
// sparing one device (e.g. the session issuing the revoke-all call).
func RevokeAllUserSessions(ctx context.Context, db *gorm.DB, userID int, exceptSid string) error {
	now := time.Now()
	q := db.WithContext(ctx).Model(&database.Session{}).
		Where("user_id = ? AND revoked_at IS NULL AND ended_at IS NULL", userID)
	if exceptSid != "" {
		q = q.Where("sid <> ?", exceptSid)
	}
	return q.Update("revoked_at", now).Error
}

// CleanupExpired purges sessions that have been terminal for more than
// olderThanDays, driven by a cron job the worker command registers.
func CleanupExpired(ctx context.Context, db *gorm.DB, olderThanDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)
	result := db.WithContext(ctx).
		Where("(revoked_at IS NOT NULL AND revoked_at < ?) OR (ended_at IS NOT NULL AND ended_at < ?) OR (expires_at IS NOT NULL AND expires_at < ?)", cutoff, cutoff, cutoff).
		Delete(&database.Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to cleanup expired sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}
