package services

import (
	"errors"
	"time"

	"github.com/filevault/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FileService owns file rows and the storage_used bookkeeping that goes with
// them. Every mutation that changes the byte total recomputes storage_used
// from the live file rows inside the same transaction, so concurrent deletes
// can never double-count a delta.
type FileService struct {
	DB *gorm.DB
}

func NewFileService(db *gorm.DB) *FileService {
	return &FileService{DB: db}
}

// recomputeStorage persists storage_used as the sum of the owner's current
// file sizes. Must run inside the same transaction as the row mutation.
func recomputeStorage(tx *gorm.DB, userID uuid.UUID) error {
	var total int64
	err := tx.Model(&models.File{}).
		Where("creator_id = ?", userID).
		Select("COALESCE(SUM(size), 0)").
		Scan(&total).Error
	if err != nil {
		return err
	}
	return tx.Model(&models.User{}).Where("id = ?", userID).Update("storage_used", total).Error
}

// Create inserts the file row and updates the owner's storage in one
// transaction. The blob must already exist; callers compensate on failure.
func (s *FileService) Create(file *models.File) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(file).Error; err != nil {
			return err
		}
		return recomputeStorage(tx, file.CreatorID)
	})
}

func (s *FileService) Get(fileID, creatorID uuid.UUID) (*models.File, error) {
	var file models.File
	err := s.DB.First(&file, "id = ? AND creator_id = ?", fileID, creatorID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &file, nil
}

// Delete removes the row and restores the owner's storage total. The file is
// re-read inside the transaction so a concurrent size change cannot skew the
// accounting; the caller must have deleted the blob beforehand.
func (s *FileService) Delete(fileID, creatorID uuid.UUID) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var file models.File
		if err := tx.First(&file, "id = ? AND creator_id = ?", fileID, creatorID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if err := tx.Delete(&models.File{}, "id = ?", file.ID).Error; err != nil {
			return err
		}
		return recomputeStorage(tx, creatorID)
	})
}

func (s *FileService) Rename(fileID, creatorID uuid.UUID, name string) error {
	result := s.DB.Model(&models.File{}).
		Where("id = ? AND creator_id = ?", fileID, creatorID).
		Update("name", name)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Move reparents a file; a nil folder id moves it to root level.
func (s *FileService) Move(fileID, creatorID uuid.UUID, folderID *uuid.UUID) error {
	if folderID != nil {
		var target models.Folder
		err := s.DB.First(&target, "id = ? AND creator_id = ?", *folderID, creatorID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
	}

	result := s.DB.Model(&models.File{}).
		Where("id = ? AND creator_id = ?", fileID, creatorID).
		Update("folder_id", folderID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *FileService) ToggleFavorite(fileID, creatorID uuid.UUID) error {
	result := s.DB.Model(&models.File{}).
		Where("id = ? AND creator_id = ?", fileID, creatorID).
		Update("favorite", gorm.Expr("NOT favorite"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Recent returns the owner's files touched within the trailing 30 days,
// most recently updated first.
func (s *FileService) Recent(creatorID uuid.UUID) ([]models.File, error) {
	cutoff := time.Now().AddDate(0, 0, -30)

	var files []models.File
	err := s.DB.
		Where("creator_id = ? AND updated_at >= ?", creatorID, cutoff).
		Order("updated_at DESC").
		Find(&files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}
