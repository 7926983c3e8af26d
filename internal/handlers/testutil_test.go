package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/filevault/backend/internal/database"
	"github.com/filevault/backend/internal/middleware"
	"github.com/filevault/backend/internal/models"
	"github.com/filevault/backend/internal/services"
	"github.com/filevault/backend/pkg/logger"
	"github.com/filevault/backend/pkg/utils"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"
)

const testQuotaBytes = 100000

type testEnv struct {
	app   *fiber.App
	db    *gorm.DB
	blobs *memBlobStore
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		logger.Init()
		utils.ConfigureJWT("test-secret", 24)
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed migrating models: %v", err)
	}

	blobs := newMemBlobStore()

	userService := services.NewUserService(db, testQuotaBytes)
	folderService := services.NewFolderService(db)
	fileService := services.NewFileService(db)
	itemService := services.NewItemService(db)

	authHandler := NewAuthHandler(userService, blobs)
	filesHandler := NewFilesHandler(userService, fileService, folderService, blobs)
	foldersHandler := NewFoldersHandler(folderService, blobs)
	driveHandler := NewDriveHandler(itemService, fileService, folderService)

	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 25 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS())
	app.Use(middleware.RequestLogger())

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Post("/logout", authMiddleware.RequireAuth, authHandler.Logout)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)
	authRoutes.Put("/me", authMiddleware.RequireAuth, authHandler.UpdateMe)
	authRoutes.Put("/password", authMiddleware.RequireAuth, authHandler.ChangePassword)
	authRoutes.Put("/sort-preference", authMiddleware.RequireAuth, authHandler.SetSortPreference)
	authRoutes.Delete("/me", authMiddleware.RequireAuth, authHandler.DeleteAccount)

	driveRoutes := api.Group("/drive", authMiddleware.RequireAuth)
	driveRoutes.Get("/", driveHandler.Home)
	driveRoutes.Get("/favorites", driveHandler.Favorites)
	driveRoutes.Get("/search", driveHandler.Search)
	driveRoutes.Get("/recent", driveHandler.Recent)

	folderRoutes := api.Group("/folders", authMiddleware.RequireAuth)
	folderRoutes.Post("/", foldersHandler.Create)
	folderRoutes.Get("/:id", driveHandler.Folder)
	folderRoutes.Get("/:id/path", foldersHandler.Path)
	folderRoutes.Put("/:id", foldersHandler.Update)
	folderRoutes.Put("/:id/favorite", foldersHandler.ToggleFavorite)
	folderRoutes.Delete("/:id", foldersHandler.Delete)

	fileRoutes := api.Group("/files", authMiddleware.RequireAuth)
	fileRoutes.Post("/upload", filesHandler.Upload)
	fileRoutes.Get("/:id", filesHandler.Get)
	fileRoutes.Get("/:id/download", filesHandler.Download)
	fileRoutes.Get("/:id/download-url", filesHandler.DownloadURL)
	fileRoutes.Put("/:id", filesHandler.Update)
	fileRoutes.Put("/:id/favorite", filesHandler.ToggleFavorite)
	fileRoutes.Delete("/:id", filesHandler.Delete)

	return &testEnv{app: app, db: db, blobs: blobs}
}

// memBlobStore is an in-memory BlobStore standing in for the object store.
// It counts calls so tests can assert that rejected uploads never touch it.
type memBlobStore struct {
	mu         sync.Mutex
	objects    map[string][]byte
	types      map[string]string
	uploads    int
	deletes    int
	failUpload bool
	failDelete bool
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

func (m *memBlobStore) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.uploads++
	if m.failUpload {
		return errors.New("upload rejected")
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.objects[key] = data
	m.types[key] = contentType
	return nil
}

func (m *memBlobStore) Download(ctx context.Context, key string) (io.ReadCloser, int64, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.objects[key]
	if !ok {
		return nil, 0, "", errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), m.types[key], nil
}

func (m *memBlobStore) PresignedGetURL(ctx context.Context, key, filename string, expiry time.Duration) (string, error) {
	return "http://blobs.test/" + key, nil
}

func (m *memBlobStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deletes++
	if m.failDelete {
		return errors.New("delete rejected")
	}
	delete(m.objects, key)
	delete(m.types, key)
	return nil
}

func (m *memBlobStore) BatchDelete(ctx context.Context, keys []string) error {
	for _, key := range keys {
		if err := m.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (m *memBlobStore) objectCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

func (m *memBlobStore) uploadCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uploads
}

func createTestUser(t *testing.T, db *gorm.DB, username, password string) (*models.User, string) {
	t.Helper()

	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("failed hashing password: %v", err)
	}

	user := &models.User{
		Username:       username,
		PasswordHash:   hash,
		FirstName:      "Test",
		LastName:       "User",
		SortPreference: models.DefaultSortPreference,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}

	token, err := utils.GenerateToken(user)
	if err != nil {
		t.Fatalf("failed generating auth token: %v", err)
	}

	return user, token
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

// performUpload posts a multipart form with one file part plus extra fields.
func performUpload(t *testing.T, app *fiber.App, path, filename string, content []byte, fields map[string]string, headers map[string]string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("failed creating form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("failed writing form file: %v", err)
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("failed writing form field: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed closing multipart writer: %v", err)
	}

	requestHeaders := map[string]string{"Content-Type": writer.FormDataContentType()}
	for key, value := range headers {
		requestHeaders[key] = value
	}

	return performRequest(t, app, http.MethodPost, path, &buf, requestHeaders)
}

// performFormPut sends a multipart PUT with only form fields.
func performFormPut(t *testing.T, app *fiber.App, path string, fields map[string]string, headers map[string]string) *http.Response {
	t.Helper()
	return performMultipart(t, app, http.MethodPut, path, "", "", nil, fields, headers)
}

// performFormPutWithFile sends a multipart PUT with form fields and one named
// file part.
func performFormPutWithFile(t *testing.T, app *fiber.App, path, fieldName, filename string, content []byte, fields map[string]string, headers map[string]string) *http.Response {
	t.Helper()
	return performMultipart(t, app, http.MethodPut, path, fieldName, filename, content, fields, headers)
}

func performMultipart(t *testing.T, app *fiber.App, method, path, fileField, filename string, content []byte, fields map[string]string, headers map[string]string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if fileField != "" {
		part, err := writer.CreateFormFile(fileField, filename)
		if err != nil {
			t.Fatalf("failed creating form file: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("failed writing form file: %v", err)
		}
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("failed writing form field: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed closing multipart writer: %v", err)
	}

	requestHeaders := map[string]string{"Content-Type": writer.FormDataContentType()}
	for key, value := range headers {
		requestHeaders[key] = value
	}

	return performRequest(t, app, method, path, &buf, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertEnvelopeError(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if success, _ := body["success"].(bool); success {
		t.Fatalf("expected success=false, got %+v", body)
	}
	if got, _ := body["error"].(string); got != expected {
		t.Fatalf("expected error %q, got %q", expected, got)
	}
}

func storageUsed(t *testing.T, db *gorm.DB, username string) int64 {
	t.Helper()

	var user models.User
	if err := db.First(&user, "username = ?", username).Error; err != nil {
		t.Fatalf("failed loading user %s: %v", username, err)
	}
	return user.StorageUsed
}
