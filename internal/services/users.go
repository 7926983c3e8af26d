package services

import (
	"errors"

	"github.com/filevault/backend/internal/models"
	"github.com/filevault/backend/pkg/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserService covers identity and quota: registration, credential checks,
// profile updates and the quota gate that runs before any blob upload.
type UserService struct {
	DB         *gorm.DB
	QuotaBytes int64
}

func NewUserService(db *gorm.DB, quotaBytes int64) *UserService {
	return &UserService{DB: db, QuotaBytes: quotaBytes}
}

func (s *UserService) Create(firstName, lastName, username, password string) (*models.User, error) {
	var count int64
	if err := s.DB.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrUsernameTaken
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Username:       username,
		PasswordHash:   hash,
		FirstName:      firstName,
		LastName:       lastName,
		SortPreference: models.DefaultSortPreference,
	}
	if err := s.DB.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return &user, nil
}

// Authenticate never reveals whether the username or the password was wrong.
func (s *UserService) Authenticate(username, password string) (*models.User, error) {
	var user models.User
	err := s.DB.First(&user, "username = ?", username).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !utils.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

func (s *UserService) Get(userID uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.DB.First(&user, "id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CheckQuota gates an incoming upload against the fixed per-user quota. It
// must run before the blob store is touched.
func (s *UserService) CheckQuota(user *models.User, incomingBytes int64) error {
	if user.StorageUsed+incomingBytes > s.QuotaBytes {
		available := s.QuotaBytes - user.StorageUsed
		if available < 0 {
			available = 0
		}
		return &QuotaExceededError{AvailableBytes: available}
	}
	return nil
}

type ProfilePatch struct {
	FirstName      string
	LastName       string
	PictureID      *string
	PictureVersion *string
}

func (s *UserService) UpdateProfile(userID uuid.UUID, patch ProfilePatch) error {
	updates := map[string]interface{}{
		"first_name": patch.FirstName,
		"last_name":  patch.LastName,
	}
	if patch.PictureID != nil {
		updates["picture_id"] = *patch.PictureID
	}
	if patch.PictureVersion != nil {
		updates["picture_version"] = *patch.PictureVersion
	}

	result := s.DB.Model(&models.User{}).Where("id = ?", userID).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *UserService) UpdatePassword(userID uuid.UUID, newPassword string) error {
	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return err
	}

	result := s.DB.Model(&models.User{}).Where("id = ?", userID).Update("password_hash", hash)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetSortPreference stores the canonical form of the requested sort; garbage
// input normalizes to the default rather than erroring.
func (s *UserService) SetSortPreference(userID uuid.UUID, raw string) (string, error) {
	normalized := NormalizeSort(raw)
	result := s.DB.Model(&models.User{}).Where("id = ?", userID).Update("sort_preference", normalized)
	if result.Error != nil {
		return "", result.Error
	}
	if result.RowsAffected == 0 {
		return "", ErrNotFound
	}
	return normalized, nil
}

// Files returns every file the user owns, used to collect blob ids before an
// account delete.
func (s *UserService) Files(userID uuid.UUID) ([]models.File, error) {
	var files []models.File
	if err := s.DB.Where("creator_id = ?", userID).Find(&files).Error; err != nil {
		return nil, err
	}
	return files, nil
}

// Delete removes the account with everything it owns in one transaction.
// Blob cleanup happens before this is called.
func (s *UserService) Delete(userID uuid.UUID) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.File{}, "creator_id = ?", userID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Folder{}, "creator_id = ?", userID).Error; err != nil {
			return err
		}

		result := tx.Delete(&models.User{}, "id = ?", userID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
