package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"legacy/config"
	"legacy/models"
	"legacy/routes"
	"legacy/utils"
)

// fakeStore is an in-memory FileStore. It records uploads and deletes and
// can be told to fail deletes.
type fakeStore struct {
	mu         sync.Mutex
	uploads    map[string][]byte
	deleted    []string
	failDelete bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{uploads: make(map[string][]byte)}
}

func (f *fakeStore) Upload(_ context.Context, key string, _ string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads[key] = data
	return "https://files.test/legacy-media/" + key, nil
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete {
		return errors.New("storage unavailable")
	}
	f.deleted = append(f.deleted, key)
	return nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, config.MigrateDB(db))
	return db
}

func setupTestApp(t *testing.T) (*fiber.App, *gorm.DB, *fakeStore) {
	t.Helper()

	config.AppConfig = config.Config{
		Environment:     "test",
		JWTSecret:       "test-secret",
		RateLimitUpload: 1000,
		TrashRetention:  24 * time.Hour,
	}

	db := setupTestDB(t)
	store := newFakeStore()

	app := fiber.New()
	routes.SetupRoutes(app, db, store, nil)
	return app, db, store
}

func createUser(t *testing.T, db *gorm.DB, email string) (*models.User, string) {
	t.Helper()
	user := &models.User{
		Email:        email,
		Name:         email,
		PasswordHash: "x",
	}
	require.NoError(t, db.Create(user).Error)

	token, _, err := utils.GenerateJWTToken(user)
	require.NoError(t, err)
	return user, token
}

func createVault(t *testing.T, db *gorm.DB, admin *models.User) *models.Vault {
	t.Helper()
	vault := &models.Vault{
		Name:       "Family Memories",
		InviteCode: utils.GenerateInviteCode(),
	}
	require.NoError(t, db.Create(vault).Error)
	require.NoError(t, db.Create(&models.VaultMember{
		VaultID: vault.ID,
		UserID:  admin.ID,
		Role:    models.RoleAdmin,
	}).Error)
	return vault
}

func addMember(t *testing.T, db *gorm.DB, vault *models.Vault, user *models.User, role models.Role) *models.VaultMember {
	t.Helper()
	member := &models.VaultMember{VaultID: vault.ID, UserID: user.ID, Role: role}
	require.NoError(t, db.Create(member).Error)
	return member
}

func createMedia(t *testing.T, db *gorm.DB, vault *models.Vault, uploader *models.User) *models.Media {
	t.Helper()
	media := &models.Media{
		VaultID:    vault.ID,
		UploaderID: uploader.ID,
		FileURL:    fmt.Sprintf("https://files.test/legacy-media/%d/photo.jpg", vault.ID),
		FileName:   "photo.jpg",
		FileSize:   1024,
		Type:       models.MediaImage,
		Approved:   true,
	}
	require.NoError(t, db.Create(media).Error)
	return media
}

// doJSON performs a JSON request against the app, optionally authenticated.
func doJSON(t *testing.T, app *fiber.App, method, path, token string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// doUpload performs a multipart upload with a file part of the given MIME
// type plus any extra form fields.
func doUpload(t *testing.T, app *fiber.App, path, token, fileName, contentType string, data []byte, fields map[string]string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)

	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}
