package handlers

import (
	"github.com/filevault/backend/internal/middleware"
	"github.com/filevault/backend/internal/services"
	"github.com/filevault/backend/internal/storage"
	"github.com/filevault/backend/pkg/logger"
	"github.com/filevault/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type FoldersHandler struct {
	Folders *services.FolderService
	Storage storage.BlobStore
}

func NewFoldersHandler(folders *services.FolderService, blobStore storage.BlobStore) *FoldersHandler {
	return &FoldersHandler{Folders: folders, Storage: blobStore}
}

type createFolderRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parentID"`
}

func (h *FoldersHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req createFolderRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	name, msg := validateItemName(req.Name)
	if msg != "" {
		return utils.Error(c, fiber.StatusBadRequest, msg)
	}

	parsedParent, err := parseOptionalUUID(stringOrEmpty(req.ParentID))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid parentID")
	}

	folder, err := h.Folders.Create(name, parsedParent, currentUser.ID)
	if err != nil {
		return serviceError(c, err, "failed creating folder")
	}

	return utils.Success(c, fiber.StatusCreated, folder)
}

type updateFolderRequest struct {
	Name     *string `json:"name"`
	ParentID *string `json:"parentID"`
}

func (h *FoldersHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	folderID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid folder id")
	}

	var req updateFolderRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Name == nil && req.ParentID == nil {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	if req.Name != nil {
		name, msg := validateItemName(*req.Name)
		if msg != "" {
			return utils.Error(c, fiber.StatusBadRequest, msg)
		}
		if err := h.Folders.Rename(folderID, currentUser.ID, name); err != nil {
			return serviceError(c, err, "failed renaming folder")
		}
	}

	if req.ParentID != nil {
		parentID, parseErr := parseOptionalUUID(*req.ParentID)
		if parseErr != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid parentID")
		}
		if err := h.Folders.Move(folderID, currentUser.ID, parentID); err != nil {
			return serviceError(c, err, "failed moving folder")
		}
	}

	updated, err := h.Folders.Get(folderID, currentUser.ID)
	if err != nil {
		return serviceError(c, err, "failed loading updated folder")
	}
	return utils.Success(c, fiber.StatusOK, updated)
}

func (h *FoldersHandler) ToggleFavorite(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	folderID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid folder id")
	}

	if err := h.Folders.ToggleFavorite(folderID, currentUser.ID); err != nil {
		return serviceError(c, err, "failed updating favorite status")
	}

	updated, err := h.Folders.Get(folderID, currentUser.ID)
	if err != nil {
		return serviceError(c, err, "failed loading updated folder")
	}
	return utils.Success(c, fiber.StatusOK, updated)
}

func (h *FoldersHandler) Path(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	folderID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid folder id")
	}

	chain, err := h.Folders.Breadcrumbs(folderID, currentUser.ID)
	if err != nil {
		return serviceError(c, err, "failed building breadcrumb path")
	}
	return utils.Success(c, fiber.StatusOK, chain)
}

// Delete collects every file in the subtree, removes their blobs in one batch
// and only then drops the rows. A blob failure aborts before any database
// mutation.
func (h *FoldersHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	folderID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid folder id")
	}

	files, err := h.Folders.DescendantFiles(folderID, currentUser.ID)
	if err != nil {
		return serviceError(c, err, "failed collecting folder contents")
	}

	if len(files) > 0 {
		keys := make([]string, len(files))
		for i, file := range files {
			keys[i] = storage.ObjectKey(file.BlobID, file.MimeType)
		}
		if err := h.Storage.BatchDelete(c.Context(), keys); err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed deleting folder contents")
		}
	}

	if err := h.Folders.Delete(folderID, currentUser.ID); err != nil {
		return serviceError(c, err, "failed deleting folder")
	}

	logger.InfoWithUser(currentUser.ID.String(), "folder_deleted", map[string]interface{}{
		"folder_id":     folderID.String(),
		"files_removed": len(files),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "folder deleted"})
}

func stringOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
