package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"ctp/consts"
	"ctp/database"
	"ctp/internal/auth"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&database.User{}, &database.Session{}))
	return db
}

func createTestUser(t *testing.T, db *gorm.DB) int {
	t.Helper()
	u := &database.User{Username: "student", Email: "student@example.com", IsActive: true}
	require.NoError(t, db.Create(u).Error)
	return u.ID
}

func TestCreateIssuesDistinctTokens(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	userID := createTestUser(t, db)

	issued, err := Create(ctx, db, userID, "127.0.0.1", "test-agent", time.Now().Add(time.Hour), time.Now().Add(24*time.Hour))
	require.NoError(t, err)
	require.NotEmpty(t, issued.Sid)
	require.NotEmpty(t, issued.AccessToken)
	require.NotEmpty(t, issued.RefreshToken)
	require.NotEqual(t, issued.AccessToken, issued.RefreshToken)

	var stored database.Session
	require.NoError(t, db.Where("sid = ?", issued.Sid).First(&stored).Error)
	require.Equal(t, auth.HashAPIToken(issued.AccessToken), stored.SessionIDHash)
	require.Equal(t, auth.HashAPIToken(issued.RefreshToken), *stored.RefreshTokenHash)
}

func TestFindActiveByAccessHashReturnsNotFoundForUnknownHash(t *testing.T) {
	db := newTestDB(t)
	_, err := FindActiveByAccessHash(context.Background(), db, "nonexistent-hash")
	require.True(t, errors.Is(err, consts.ErrNotFound))
}

func TestFindActiveByAccessHashReturnsExpiredForLapsedSession(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	userID := createTestUser(t, db)

	issued, err := Create(ctx, db, userID, "127.0.0.1", "test-agent", time.Now().Add(-time.Minute), time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = FindActiveByAccessHash(ctx, db, auth.HashAPIToken(issued.AccessToken))
	require.True(t, errors.Is(err, consts.ErrSessionExpired))
}

func TestRefreshRotatesTokensAndRejectsReuse(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	userID := createTestUser(t, db)

	issued, err := Create(ctx, db, userID, "127.0.0.1", "test-agent", time.Now().Add(time.Hour), time.Now().Add(24*time.Hour))
	require.NoError(t, err)

	refreshHash := auth.HashAPIToken(issued.RefreshToken)
	rotated, err := Refresh(ctx, db, refreshHash, "10.0.0.1")
	require.NoError(t, err)
	require.Equal(t, issued.Sid, rotated.Sid)
	require.NotEqual(t, issued.AccessToken, rotated.AccessToken)
	require.NotEqual(t, issued.RefreshToken, rotated.RefreshToken)

	// Reusing the now-stale refresh hash must fail: the row has already rotated.
	_, err = Refresh(ctx, db, refreshHash, "10.0.0.2")
	require.True(t, errors.Is(err, consts.ErrNotFound))
}

func TestEndMarksSessionInactive(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	userID := createTestUser(t, db)

	issued, err := Create(ctx, db, userID, "127.0.0.1", "test-agent", time.Now().Add(time.Hour), time.Now().Add(24*time.Hour))
	require.NoError(t, err)

	require.NoError(t, End(ctx, db, issued.Sid))

	_, err = FindActiveByAccessHash(ctx, db, auth.HashAPIToken(issued.AccessToken))
	require.True(t, errors.Is(err, consts.ErrNotFound))
}

func TestRevokeAllUserSessionsSparesExceptedDevice(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	userID := createTestUser(t, db)

	kept, err := Create(ctx, db, userID, "127.0.0.1", "device-a", time.Now().Add(time.Hour), time.Now().Add(24*time.Hour))
	require.NoError(t, err)
	revoked, err := Create(ctx, db, userID, "127.0.0.1", "device-b", time.Now().Add(time.Hour), time.Now().Add(24*time.Hour))
	require.NoError(t, err)

	require.NoError(t, RevokeAllUserSessions(ctx, db, userID, kept.Sid))

	_, err = FindActiveByAccessHash(ctx, db, auth.HashAPIToken(kept.AccessToken))
	require.NoError(t, err)

	_, err = FindActiveByAccessHash(ctx, db, auth.HashAPIToken(revoked.AccessToken))
	require.True(t, errors.Is(err, consts.ErrNotFound))
}

func TestCleanupExpiredPurgesOnlyTerminalSessions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	userID := createTestUser(t, db)

	live, err := Create(ctx, db, userID, "127.0.0.1", "device-a", time.Now().Add(time.Hour), time.Now().Add(24*time.Hour))
	require.NoError(t, err)
	stale, err := Create(ctx, db, userID, "127.0.0.1", "device-b", time.Now().Add(time.Hour), time.Now().Add(24*time.Hour))
	require.NoError(t, err)
	require.NoError(t, Revoke(ctx, db, stale.Sid))

	// Backdate the revoked row past the cutoff directly; CleanupExpired only
	// purges sessions that have been terminal for longer than olderThanDays.
	oldTimestamp := time.Now().AddDate(0, 0, -30)
	require.NoError(t, db.Model(&database.Session{}).Where("sid = ?", stale.Sid).Update("revoked_at", oldTimestamp).Error)

	count, err := CleanupExpired(ctx, db, 7)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	var remaining database.Session
	require.NoError(t, db.Where("sid = ?", live.Sid).First(&remaining).Error)
}
