package controller_test

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legacy/models"
)

func TestUploadMediaApprovalByRole(t *testing.T) {
	app, db, _ := setupTestApp(t)
	admin, adminToken := createUser(t, db, "admin@example.com")
	vault := createVault(t, db, admin)
	member, memberToken := createUser(t, db, "member@example.com")
	addMember(t, db, vault, member, models.RoleMember)

	path := fmt.Sprintf("/api/v1/vaults/%d/media", vault.ID)

	// Admin uploads are auto-approved
	resp := doUpload(t, app, path, adminToken, "sunset.jpg", "image/jpeg", []byte("jpeg-bytes"), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, true, body["media"].(map[string]interface{})["approved"])

	// Member uploads wait for approval
	resp = doUpload(t, app, path, memberToken, "beach.jpg", "image/jpeg", []byte("jpeg-bytes"), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, false, body["media"].(map[string]interface{})["approved"])
}

func TestUploadMediaReadOnlyForbidden(t *testing.T) {
	app, db, _ := setupTestApp(t)
	admin, _ := createUser(t, db, "admin@example.com")
	vault := createVault(t, db, admin)
	viewer, viewerToken := createUser(t, db, "viewer@example.com")
	addMember(t, db, vault, viewer, models.RoleReadOnly)

	resp := doUpload(t, app, fmt.Sprintf("/api/v1/vaults/%d/media", vault.ID),
		viewerToken, "sunset.jpg", "image/jpeg", []byte("jpeg-bytes"), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestUploadMediaUnsupportedType(t *testing.T) {
	app, db, _ := setupTestApp(t)
	admin, token := createUser(t, db, "admin@example.com")
	vault := createVault(t, db, admin)

	resp := doUpload(t, app, fmt.Sprintf("/api/v1/vaults/%d/media", vault.ID),
		token, "report.pdf", "application/pdf", []byte("pdf-bytes"), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestApproveMedia(t *testing.T) {
	app, db, _ := setupTestApp(t)
	admin, adminToken := createUser(t, db, "admin@example.com")
	vault := createVault(t, db, admin)
	member, memberToken := createUser(t, db, "member@example.com")
	addMember(t, db, vault, member, models.RoleMember)

	media := createMedia(t, db, vault, member)
	require.NoError(t, db.Model(media).Update("approved", false).Error)

	path := fmt.Sprintf("/api/v1/vaults/%d/media/%d", vault.ID, media.ID)

	// Members cannot approve, not even their own uploads
	resp := doJSON(t, app, http.MethodPut, path, memberToken, map[string]string{"action": "approve"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPut, path, adminToken, map[string]string{"action": "approve"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	var reloaded models.Media
	require.NoError(t, db.First(&reloaded, media.ID).Error)
	assert.True(t, reloaded.Approved)
}

func TestDeleteMediaByUploaderTrashesDirectly(t *testing.T) {
	app, db, _ := setupTestApp(t)
	admin, _ := createUser(t, db, "admin@example.com")
	vault := createVault(t, db, admin)
	member, memberToken := createUser(t, db, "member@example.com")
	addMember(t, db, vault, member, models.RoleMember)
	media := createMedia(t, db, vault, member)

	resp := doJSON(t, app, http.MethodDelete,
		fmt.Sprintf("/api/v1/vaults/%d/media/%d", vault.ID, media.ID), memberToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, true, body["deleted"])

	var reloaded models.Media
	require.NoError(t, db.First(&reloaded, media.ID).Error)
	assert.True(t, reloaded.IsTrashed())
}

func TestDeleteMediaVoteFlow(t *testing.T) {
	app, db, _ := setupTestApp(t)
	admin, _ := createUser(t, db, "admin@example.com")
	vault := createVault(t, db, admin)
	uploader, _ := createUser(t, db, "uploader@example.com")
	addMember(t, db, vault, uploader, models.RoleMember)
	media := createMedia(t, db, vault, uploader)

	// Five members total; a strict majority needs three votes
	var tokens []string
	for i := 0; i < 3; i++ {
		voter, token := createUser(t, db, fmt.Sprintf("voter%d@example.com", i))
		addMember(t, db, vault, voter, models.RoleMember)
		tokens = append(tokens, token)
	}

	path := fmt.Sprintf("/api/v1/vaults/%d/media/%d", vault.ID, media.ID)

	// First two votes do not trash
	for i := 0; i < 2; i++ {
		resp := doJSON(t, app, http.MethodDelete, path, tokens[i], nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, false, body["deleted"])
		assert.Equal(t, float64(i+1), body["votes"])
		assert.Equal(t, float64(3), body["votes_required"])
	}

	var reloaded models.Media
	require.NoError(t, db.First(&reloaded, media.ID).Error)
	require.False(t, reloaded.IsTrashed())

	// Third vote reaches the majority
	resp := doJSON(t, app, http.MethodDelete, path, tokens[2], nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, true, body["deleted"])

	require.NoError(t, db.First(&reloaded, media.ID).Error)
	assert.True(t, reloaded.IsTrashed())
}

func TestDeleteMediaDuplicateVoteIsNoOp(t *testing.T) {
	app, db, _ := setupTestApp(t)
	admin, _ := createUser(t, db, "admin@example.com")
	vault := createVault(t, db, admin)
	uploader, _ := createUser(t, db, "uploader@example.com")
	addMember(t, db, vault, uploader, models.RoleMember)
	voter, voterToken := createUser(t, db, "voter@example.com")
	addMember(t, db, vault, voter, models.RoleMember)
	media := createMedia(t, db, vault, uploader)

	path := fmt.Sprintf("/api/v1/vaults/%d/media/%d", vault.ID, media.ID)

	for i := 0; i < 2; i++ {
		resp := doJSON(t, app, http.MethodDelete, path, voterToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, float64(1), body["votes"])
	}

	var count int64
	db.Model(&models.Vote{}).Where("media_id = ?", media.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestDeleteMediaAlreadyTrashedConflicts(t *testing.T) {
	app, db, _ := setupTestApp(t)
	admin, adminToken := createUser(t, db, "admin@example.com")
	vault := createVault(t, db, admin)
	media := createMedia(t, db, vault, admin)

	now := time.Now()
	require.NoError(t, db.Model(media).Update("deleted_at", &now).Error)

	resp := doJSON(t, app, http.MethodDelete,
		fmt.Sprintf("/api/v1/vaults/%d/media/%d", vault.ID, media.ID), adminToken, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestRestoreMediaPreservesVotesAndComments(t *testing.T) {
	app, db, _ := setupTestApp(t)
	admin, adminToken := createUser(t, db, "admin@example.com")
	vault := createVault(t, db, admin)
	uploader, _ := createUser(t, db, "uploader@example.com")
	addMember(t, db, vault, uploader, models.RoleMember)
	media := createMedia(t, db, vault, uploader)

	require.NoError(t, db.Create(&models.Vote{MediaID: media.ID, VoterID: admin.ID, Value: true}).Error)
	require.NoError(t, db.Create(&models.Comment{MediaID: media.ID, AuthorID: admin.ID, Content: "keep this"}).Error)
	now := time.Now()
	require.NoError(t, db.Model(media).Update("deleted_at", &now).Error)

	resp := doJSON(t, app, http.MethodPut,
		fmt.Sprintf("/api/v1/vaults/%d/media/%d", vault.ID, media.ID),
		adminToken, map[string]string{"action": "restore"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// The round trip touches nothing but the trash marker: votes and
	// comments come back exactly as they were.
	var reloaded models.Media
	require.NoError(t, db.First(&reloaded, media.ID).Error)
	assert.False(t, reloaded.IsTrashed())

	var votes, comments int64
	db.Model(&models.Vote{}).Where("media_id = ?", media.ID).Count(&votes)
	db.Model(&models.Comment{}).Where("media_id = ?", media.ID).Count(&comments)
	assert.Equal(t, int64(1), votes)
	assert.Equal(t, int64(1), comments)
}

func TestApproveTrashedMediaConflicts(t *testing.T) {
	app, db, _ := setupTestApp(t)
	admin, adminToken := createUser(t, db, "admin@example.com")
	vault := createVault(t, db, admin)
	media := createMedia(t, db, vault, admin)
	require.NoError(t, db.Model(media).Update("approved", false).Error)
	now := time.Now()
	require.NoError(t, db.Model(media).Update("deleted_at", &now).Error)

	resp := doJSON(t, app, http.MethodPut,
		fmt.Sprintf("/api/v1/vaults/%d/media/%d", vault.ID, media.ID),
		adminToken, map[string]string{"action": "approve"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	var reloaded models.Media
	require.NoError(t, db.First(&reloaded, media.ID).Error)
	assert.False(t, reloaded.Approved)
}

func TestDeleteMediaRejectsOversizedReason(t *testing.T) {
	app, db, _ := setupTestApp(t)
	admin, _ := createUser(t, db, "admin@example.com")
	vault := createVault(t, db, admin)
	uploader, _ := createUser(t, db, "uploader@example.com")
	addMember(t, db, vault, uploader, models.RoleMember)
	voter, voterToken := createUser(t, db, "voter@example.com")
	addMember(t, db, vault, voter, models.RoleMember)
	media := createMedia(t, db, vault, uploader)

	resp := doJSON(t, app, http.MethodDelete,
		fmt.Sprintf("/api/v1/vaults/%d/media/%d", vault.ID, media.ID),
		voterToken, map[string]string{"reason": strings.Repeat("x", 501)})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	var votes int64
	db.Model(&models.Vote{}).Where("media_id = ?", media.ID).Count(&votes)
	assert.Equal(t, int64(0), votes)
}

func TestRestoreMediaNotTrashedConflicts(t *testing.T) {
	app, db, _ := setupTestApp(t)
	admin, adminToken := createUser(t, db, "admin@example.com")
	vault := createVault(t, db, admin)
	media := createMedia(t, db, vault, admin)

	resp := doJSON(t, app, http.MethodPut,
		fmt.Sprintf("/api/v1/vaults/%d/media/%d", vault.ID, media.ID),
		adminToken, map[string]string{"action": "restore"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestPermanentDeleteMedia(t *testing.T) {
	app, db, store := setupTestApp(t)
	admin, adminToken := createUser(t, db, "admin@example.com")
	vault := createVault(t, db, admin)
	member, memberToken := createUser(t, db, "member@example.com")
	addMember(t, db, vault, member, models.RoleMember)
	media := createMedia(t, db, vault, admin)

	path := fmt.Sprintf("/api/v1/vaults/%d/media/%d/permanent", vault.ID, media.ID)

	// Must be in trash first
	resp := doJSON(t, app, http.MethodDelete, path, adminToken, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	now := time.Now()
	require.NoError(t, db.Model(media).Update("deleted_at", &now).Error)

	// Admin only
	resp = doJSON(t, app, http.MethodDelete, path, memberToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodDelete, path, adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	var count int64
	db.Model(&models.Media{}).Where("id = ?", media.ID).Count(&count)
	assert.Equal(t, int64(0), count)
	assert.Len(t, store.deleted, 1)

	var activity models.VaultActivity
	require.NoError(t, db.Where("vault_id = ? AND action = ?", vault.ID, models.ActivityMediaDeleted).First(&activity).Error)
}

func TestPermanentDeleteSurvivesStorageFailure(t *testing.T) {
	app, db, store := setupTestApp(t)
	admin, adminToken := createUser(t, db, "admin@example.com")
	vault := createVault(t, db, admin)
	media := createMedia(t, db, vault, admin)

	now := time.Now()
	require.NoError(t, db.Model(media).Update("deleted_at", &now).Error)
	store.failDelete = true

	resp := doJSON(t, app, http.MethodDelete,
		fmt.Sprintf("/api/v1/vaults/%d/media/%d/permanent", vault.ID, media.ID), adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	var count int64
	db.Model(&models.Media{}).Where("id = ?", media.ID).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestPermanentDeleteMembershipLookupFailureIs500(t *testing.T) {
	app, db, _ := setupTestApp(t)
	admin, adminToken := createUser(t, db, "admin@example.com")
	vault := createVault(t, db, admin)
	media := createMedia(t, db, vault, admin)

	// A store failure while resolving membership is a server error, not
	// an authorization verdict.
	require.NoError(t, db.Migrator().DropTable(&models.VaultMember{}))

	resp := doJSON(t, app, http.MethodDelete,
		fmt.Sprintf("/api/v1/vaults/%d/media/%d/permanent", vault.ID, media.ID), adminToken, nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	resp.Body.Close()
}

func TestGetTrash(t *testing.T) {
	app, db, _ := setupTestApp(t)
	admin, adminToken := createUser(t, db, "admin@example.com")
	vault := createVault(t, db, admin)

	kept := createMedia(t, db, vault, admin)
	trashed := createMedia(t, db, vault, admin)
	now := time.Now()
	require.NoError(t, db.Model(trashed).Update("deleted_at", &now).Error)

	resp := doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/v1/vaults/%d/trash", vault.ID), adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	items := body["media"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, float64(trashed.ID), items[0].(map[string]interface{})["id"])
	assert.NotEqual(t, float64(kept.ID), items[0].(map[string]interface{})["id"])
}

func TestCreateComment(t *testing.T) {
	app, db, _ := setupTestApp(t)
	admin, adminToken := createUser(t, db, "admin@example.com")
	vault := createVault(t, db, admin)
	media := createMedia(t, db, vault, admin)

	path := fmt.Sprintf("/api/v1/vaults/%d/media/%d/comments", vault.ID, media.ID)

	resp := doJSON(t, app, http.MethodPost, path, adminToken, map[string]string{
		"content": "What a day that was",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "What a day that was", body["comment"].(map[string]interface{})["content"])

	// Empty content rejected
	resp = doJSON(t, app, http.MethodPost, path, adminToken, map[string]string{"content": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}
