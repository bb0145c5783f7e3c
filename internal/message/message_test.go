package message

import (
	"context"
	"testing"

	"ctp/database"

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
	require.NoError(t, db.AutoMigrate(&database.Message{}, &database.MessageAuditLog{}, &database.MessageRead{}))
	return db
}

func createTestMessage(t *testing.T, db *gorm.DB, authorID int) *database.Message {
	t.Helper()
	msg, err := Create(context.Background(), db, nil, authorID, "hello", "world", Target{UserID: &authorID})
	require.NoError(t, err)
	return msg
}

func TestSoftDeleteByAuthorSucceeds(t *testing.T) {
	db := newTestDB(t)
	msg := createTestMessage(t, db, 1)

	err := SoftDelete(context.Background(), db, 1, msg.ID, "no longer relevant", false)
	require.NoError(t, err)

	var reloaded database.Message
	require.NoError(t, db.First(&reloaded, msg.ID).Error)
	require.Equal(t, tombstoneTitle, reloaded.Title)
	require.NotNil(t, reloaded.ArchivedAt)
}

func TestSoftDeleteByAdminSucceeds(t *testing.T) {
	db := newTestDB(t)
	msg := createTestMessage(t, db, 1)

	err := SoftDelete(context.Background(), db, 2, msg.ID, "policy violation", true)
	require.NoError(t, err)

	var reloaded database.Message
	require.NoError(t, db.First(&reloaded, msg.ID).Error)
	require.Equal(t, tombstoneTitle, reloaded.Title)
}

func TestSoftDeleteByOtherNonAdminUserForbidden(t *testing.T) {
	db := newTestDB(t)
	msg := createTestMessage(t, db, 1)

	err := SoftDelete(context.Background(), db, 2, msg.ID, "i dislike this", false)
	require.Error(t, err)

	var reloaded database.Message
	require.NoError(t, db.First(&reloaded, msg.ID).Error)
	require.Equal(t, "hello", reloaded.Title)
	require.Nil(t, reloaded.ArchivedAt)
}

func TestSoftDeleteIsIdempotentOnAlreadyDeleted(t *testing.T) {
	db := newTestDB(t)
	msg := createTestMessage(t, db, 1)

	require.NoError(t, SoftDelete(context.Background(), db, 1, msg.ID, "first", false))
	require.NoError(t, SoftDelete(context.Background(), db, 2, msg.ID, "second", false))
}

func TestUpdateByNonAuthorForbidden(t *testing.T) {
	db := newTestDB(t)
	msg := createTestMessage(t, db, 1)

	newTitle := "edited"
	_, err := Update(context.Background(), db, 2, msg.ID, &newTitle, nil)
	require.Error(t, err)
}
