package worker

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"legacy/config"
	"legacy/models"
)

type recordingStore struct {
	deleted    []string
	failDelete bool
}

func (r *recordingStore) Upload(_ context.Context, key string, _ string, _ []byte) (string, error) {
	return "https://files.test/legacy-media/" + key, nil
}

func (r *recordingStore) Delete(_ context.Context, key string) error {
	if r.failDelete {
		return errors.New("storage unavailable")
	}
	r.deleted = append(r.deleted, key)
	return nil
}

func setupWorker(t *testing.T) (*CapsuleWorker, *gorm.DB, *recordingStore) {
	t.Helper()

	config.AppConfig = config.Config{TrashRetention: 24 * time.Hour}

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, config.MigrateDB(db))

	store := &recordingStore{}
	logger := log.New(os.Stdout, "CAPSULE: ", log.LstdFlags)
	return NewCapsuleWorker(db, store, logger), db, store
}

func seedCapsuleMedia(t *testing.T, db *gorm.DB, unlockAt time.Time) *models.Media {
	t.Helper()
	media := &models.Media{
		VaultID:    1,
		UploaderID: 1,
		FileURL:    "https://files.test/legacy-media/1/capsule.jpg",
		FileName:   "capsule.jpg",
		FileSize:   10,
		Type:       models.MediaImage,
		IsLocked:   true,
		UnlockAt:   &unlockAt,
	}
	require.NoError(t, db.Create(media).Error)
	return media
}

func TestUnlockDueCapsules(t *testing.T) {
	worker, db, _ := setupWorker(t)

	due := seedCapsuleMedia(t, db, time.Now().Add(-time.Minute))
	notDue := seedCapsuleMedia(t, db, time.Now().Add(time.Hour))

	dueNote := &models.Note{
		VaultID: 1, AuthorID: 1, Content: "open me",
		IsPrivate: true, IsLocked: true,
	}
	pastUnlock := time.Now().Add(-time.Minute)
	dueNote.UnlockAt = &pastUnlock
	require.NoError(t, db.Create(dueNote).Error)

	require.NoError(t, worker.UnlockDueCapsules())

	var media models.Media
	require.NoError(t, db.First(&media, due.ID).Error)
	assert.False(t, media.IsLocked)
	assert.True(t, media.Approved)
	assert.Nil(t, media.UnlockAt)

	var stillLocked models.Media
	require.NoError(t, db.First(&stillLocked, notDue.ID).Error)
	assert.True(t, stillLocked.IsLocked)
	assert.False(t, stillLocked.Approved)

	var note models.Note
	require.NoError(t, db.First(&note, dueNote.ID).Error)
	assert.False(t, note.IsLocked)
	assert.False(t, note.IsPrivate)
	assert.Nil(t, note.UnlockAt)
}

func TestUnlockDueCapsulesIsIdempotent(t *testing.T) {
	worker, db, _ := setupWorker(t)
	due := seedCapsuleMedia(t, db, time.Now().Add(-time.Minute))

	require.NoError(t, worker.UnlockDueCapsules())
	require.NoError(t, worker.UnlockDueCapsules())

	var media models.Media
	require.NoError(t, db.First(&media, due.ID).Error)
	assert.False(t, media.IsLocked)
}

func TestPurgeExpiredTrash(t *testing.T) {
	worker, db, store := setupWorker(t)

	expired := &models.Media{
		VaultID: 1, UploaderID: 1,
		FileURL: "https://files.test/legacy-media/1/old.jpg", FileName: "old.jpg",
		FileSize: 10, Type: models.MediaImage,
	}
	require.NoError(t, db.Create(expired).Error)
	oldDeletion := time.Now().Add(-48 * time.Hour)
	require.NoError(t, db.Model(expired).Update("deleted_at", &oldDeletion).Error)
	require.NoError(t, db.Create(&models.Vote{MediaID: expired.ID, VoterID: 2, Value: true}).Error)

	recent := &models.Media{
		VaultID: 1, UploaderID: 1,
		FileURL: "https://files.test/legacy-media/1/new.jpg", FileName: "new.jpg",
		FileSize: 10, Type: models.MediaImage,
	}
	require.NoError(t, db.Create(recent).Error)
	recentDeletion := time.Now().Add(-time.Hour)
	require.NoError(t, db.Model(recent).Update("deleted_at", &recentDeletion).Error)

	require.NoError(t, worker.PurgeExpiredTrash())

	var count int64
	db.Model(&models.Media{}).Where("id = ?", expired.ID).Count(&count)
	assert.Equal(t, int64(0), count)

	db.Model(&models.Media{}).Where("id = ?", recent.ID).Count(&count)
	assert.Equal(t, int64(1), count)

	db.Model(&models.Vote{}).Where("media_id = ?", expired.ID).Count(&count)
	assert.Equal(t, int64(0), count)

	assert.Len(t, store.deleted, 1)
}

func TestPurgeExpiredTrashSurvivesStorageFailure(t *testing.T) {
	worker, db, store := setupWorker(t)
	store.failDelete = true

	expired := &models.Media{
		VaultID: 1, UploaderID: 1,
		FileURL: "https://files.test/legacy-media/1/old.jpg", FileName: "old.jpg",
		FileSize: 10, Type: models.MediaImage,
	}
	require.NoError(t, db.Create(expired).Error)
	oldDeletion := time.Now().Add(-48 * time.Hour)
	require.NoError(t, db.Model(expired).Update("deleted_at", &oldDeletion).Error)

	require.NoError(t, worker.PurgeExpiredTrash())

	var count int64
	db.Model(&models.Media{}).Where("id = ?", expired.ID).Count(&count)
	assert.Equal(t, int64(0), count)
}
