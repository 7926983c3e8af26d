package services

import (
	"testing"

	"github.com/filevault/backend/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

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

	err = db.AutoMigrate(
		&models.User{},
		&models.Folder{},
		&models.File{},
	)
	if err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	return db
}

func seedUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	user := &models.User{
		Username:       username,
		PasswordHash:   "hash",
		FirstName:      "Test",
		LastName:       "User",
		SortPreference: models.DefaultSortPreference,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating user %s: %v", username, err)
	}
	return user
}

func seedFolder(t *testing.T, db *gorm.DB, owner *models.User, name string, parent *models.Folder) *models.Folder {
	t.Helper()

	folder := &models.Folder{
		Name:      name,
		CreatorID: owner.ID,
	}
	if parent != nil {
		folder.ParentID = &parent.ID
	}
	if err := db.Create(folder).Error; err != nil {
		t.Fatalf("failed creating folder %s: %v", name, err)
	}
	return folder
}

func seedFile(t *testing.T, db *gorm.DB, owner *models.User, name string, size int64, folder *models.Folder) *models.File {
	t.Helper()

	file := &models.File{
		Name:      name,
		Size:      size,
		Format:    "txt",
		MimeType:  "text/plain",
		BlobID:    "blob-" + name,
		CreatorID: owner.ID,
	}
	if folder != nil {
		file.FolderID = &folder.ID
	}
	if err := db.Create(file).Error; err != nil {
		t.Fatalf("failed creating file %s: %v", name, err)
	}
	return file
}

func currentStorage(t *testing.T, db *gorm.DB, owner *models.User) int64 {
	t.Helper()

	var user models.User
	if err := db.First(&user, "id = ?", owner.ID).Error; err != nil {
		t.Fatalf("failed reloading user: %v", err)
	}
	return user.StorageUsed
}
