package services

import (
	"errors"

	"github.com/filevault/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FolderService owns the folder tree: creation, ownership-scoped updates,
// breadcrumb reconstruction, descendant enumeration and cascading delete.
type FolderService struct {
	DB *gorm.DB
}

func NewFolderService(db *gorm.DB) *FolderService {
	return &FolderService{DB: db}
}

func (s *FolderService) Create(name string, parentID *uuid.UUID, creatorID uuid.UUID) (*models.Folder, error) {
	if parentID != nil {
		var parent models.Folder
		err := s.DB.First(&parent, "id = ? AND creator_id = ?", *parentID, creatorID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
	}

	folder := models.Folder{
		Name:      name,
		ParentID:  parentID,
		CreatorID: creatorID,
	}
	if err := s.DB.Create(&folder).Error; err != nil {
		return nil, err
	}
	return &folder, nil
}

func (s *FolderService) Get(folderID, creatorID uuid.UUID) (*models.Folder, error) {
	var folder models.Folder
	err := s.DB.First(&folder, "id = ? AND creator_id = ?", folderID, creatorID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &folder, nil
}

func (s *FolderService) Rename(folderID, creatorID uuid.UUID, name string) error {
	result := s.DB.Model(&models.Folder{}).
		Where("id = ? AND creator_id = ?", folderID, creatorID).
		Update("name", name)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Move reparents a folder. The target must be owned by the caller and must
// not be the folder itself or one of its descendants; the ownership check is
// part of the UPDATE predicate itself.
func (s *FolderService) Move(folderID, creatorID uuid.UUID, parentID *uuid.UUID) error {
	if parentID != nil {
		if *parentID == folderID {
			return ErrFolderCycle
		}

		var target models.Folder
		err := s.DB.First(&target, "id = ? AND creator_id = ?", *parentID, creatorID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		descendant, err := s.isDescendant(folderID, *parentID, creatorID)
		if err != nil {
			return err
		}
		if descendant {
			return ErrFolderCycle
		}
	}

	result := s.DB.Model(&models.Folder{}).
		Where("id = ? AND creator_id = ?", folderID, creatorID).
		Update("parent_id", parentID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *FolderService) ToggleFavorite(folderID, creatorID uuid.UUID) error {
	result := s.DB.Model(&models.Folder{}).
		Where("id = ? AND creator_id = ?", folderID, creatorID).
		Update("favorite", gorm.Expr("NOT favorite"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Breadcrumbs returns the ancestor chain in root-to-parent order, excluding
// the folder itself. Every hop is owner-scoped.
func (s *FolderService) Breadcrumbs(folderID, creatorID uuid.UUID) ([]models.Folder, error) {
	folder, err := s.Get(folderID, creatorID)
	if err != nil {
		return nil, err
	}

	chain := make([]models.Folder, 0)
	current := folder.ParentID
	for current != nil {
		var parent models.Folder
		err := s.DB.First(&parent, "id = ? AND creator_id = ?", *current, creatorID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				break
			}
			return nil, err
		}
		chain = append(chain, parent)
		current = parent.ParentID
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// DescendantFiles returns every file transitively contained in the folder,
// gathered with an iterative work-list so depth is unbounded without
// recursion. Ownership is enforced at every level.
func (s *FolderService) DescendantFiles(folderID, creatorID uuid.UUID) ([]models.File, error) {
	if _, err := s.Get(folderID, creatorID); err != nil {
		return nil, err
	}

	folderIDs, err := s.subtreeIDs(s.DB, folderID, creatorID)
	if err != nil {
		return nil, err
	}

	var files []models.File
	err = s.DB.
		Where("folder_id IN ? AND creator_id = ?", folderIDs, creatorID).
		Find(&files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Delete removes the folder, its subtree and all contained file rows, then
// recomputes the owner's storage from the remaining files. Blob cleanup must
// have happened before this is called.
func (s *FolderService) Delete(folderID, creatorID uuid.UUID) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var folder models.Folder
		if err := tx.First(&folder, "id = ? AND creator_id = ?", folderID, creatorID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		folderIDs, err := s.subtreeIDs(tx, folderID, creatorID)
		if err != nil {
			return err
		}

		if err := tx.Delete(&models.File{}, "folder_id IN ? AND creator_id = ?", folderIDs, creatorID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Folder{}, "id IN ?", folderIDs).Error; err != nil {
			return err
		}
		return recomputeStorage(tx, creatorID)
	})
}

// subtreeIDs collects the folder id and all descendant folder ids with a
// breadth-first work-list over the owner-scoped adjacency.
func (s *FolderService) subtreeIDs(tx *gorm.DB, folderID, creatorID uuid.UUID) ([]uuid.UUID, error) {
	all := []uuid.UUID{folderID}
	frontier := []uuid.UUID{folderID}

	for len(frontier) > 0 {
		var children []uuid.UUID
		err := tx.Model(&models.Folder{}).
			Where("parent_id IN ? AND creator_id = ?", frontier, creatorID).
			Pluck("id", &children).Error
		if err != nil {
			return nil, err
		}
		all = append(all, children...)
		frontier = children
	}
	return all, nil
}

// isDescendant walks up from candidate toward the root checking whether
// ancestor appears on the way.
func (s *FolderService) isDescendant(ancestorID, candidateID uuid.UUID, creatorID uuid.UUID) (bool, error) {
	current := candidateID
	for {
		if current == ancestorID {
			return true, nil
		}

		var folder models.Folder
		err := s.DB.Select("id", "parent_id").
			First(&folder, "id = ? AND creator_id = ?", current, creatorID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return false, nil
			}
			return false, err
		}
		if folder.ParentID == nil {
			return false, nil
		}
		current = *folder.ParentID
	}
}
