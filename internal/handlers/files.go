package handlers

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/filevault/backend/internal/middleware"
	"github.com/filevault/backend/internal/models"
	"github.com/filevault/backend/internal/services"
	"github.com/filevault/backend/internal/storage"
	"github.com/filevault/backend/pkg/logger"
	"github.com/filevault/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const downloadURLExpiry = 15 * time.Minute

type FilesHandler struct {
	Users   *services.UserService
	Files   *services.FileService
	Folders *services.FolderService
	Storage storage.BlobStore
}

func NewFilesHandler(users *services.UserService, files *services.FileService, folders *services.FolderService, blobStore storage.BlobStore) *FilesHandler {
	return &FilesHandler{Users: users, Files: files, Folders: folders, Storage: blobStore}
}

// Upload runs the full upload sequence: validate, quota check, blob upload,
// registry insert. The quota gate runs before any blob traffic; a failed
// registry insert triggers a compensating blob delete.
func (h *FilesHandler) Upload(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "file is required")
	}

	// Missing name falls back to the filename minus its extension.
	rawName := c.FormValue("name")
	if strings.TrimSpace(rawName) == "" {
		base := filepath.Base(fileHeader.Filename)
		rawName = strings.TrimSuffix(base, filepath.Ext(base))
	}
	name, msg := validateItemName(rawName)
	if msg != "" {
		return utils.Error(c, fiber.StatusBadRequest, msg)
	}

	folderID, err := parseOptionalUUID(c.FormValue("parentID"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid parentID")
	}
	if folderID != nil {
		if _, err := h.Folders.Get(*folderID, currentUser.ID); err != nil {
			return serviceError(c, err, "failed validating parent folder")
		}
	}

	if err := h.Users.CheckQuota(currentUser, fileHeader.Size); err != nil {
		return serviceError(c, err, "failed checking quota")
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	format := strings.TrimPrefix(filepath.Ext(fileHeader.Filename), ".")

	stream, err := fileHeader.Open()
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed opening uploaded file")
	}
	defer stream.Close()

	blobID := uuid.New().String()
	key := storage.ObjectKey(blobID, contentType)
	if err := h.Storage.Upload(c.Context(), key, stream, fileHeader.Size, contentType); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed uploading file")
	}

	entry := models.File{
		Name:      name,
		Size:      fileHeader.Size,
		Format:    format,
		MimeType:  contentType,
		BlobID:    blobID,
		FolderID:  folderID,
		CreatorID: currentUser.ID,
	}
	if err := h.Files.Create(&entry); err != nil {
		// Compensate: the blob exists but the registry row does not.
		if cleanupErr := h.Storage.Delete(c.Context(), key); cleanupErr != nil {
			logger.Error("blob_compensation_failed", cleanupErr, map[string]interface{}{
				"key":     key,
				"user_id": currentUser.ID.String(),
			})
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating file record")
	}

	logger.InfoWithUser(currentUser.ID.String(), "file_uploaded", map[string]interface{}{
		"file_id":   entry.ID.String(),
		"file_name": name,
		"file_size": fileHeader.Size,
		"mime_type": contentType,
	})

	return utils.Success(c, fiber.StatusCreated, entry)
}

func (h *FilesHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	file, err := h.Files.Get(fileID, currentUser.ID)
	if err != nil {
		return serviceError(c, err, "failed loading file")
	}
	return utils.Success(c, fiber.StatusOK, file)
}

func (h *FilesHandler) Download(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	file, err := h.Files.Get(fileID, currentUser.ID)
	if err != nil {
		return serviceError(c, err, "failed loading file")
	}

	key := storage.ObjectKey(file.BlobID, file.MimeType)
	obj, size, contentType, err := h.Storage.Download(c.Context(), key)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed downloading file")
	}
	if contentType == "" {
		contentType = file.MimeType
	}

	c.Set("Content-Type", contentType)
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadName(file)))
	return c.SendStream(obj, int(size))
}

func (h *FilesHandler) DownloadURL(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	file, err := h.Files.Get(fileID, currentUser.ID)
	if err != nil {
		return serviceError(c, err, "failed loading file")
	}

	key := storage.ObjectKey(file.BlobID, file.MimeType)
	url, err := h.Storage.PresignedGetURL(c.Context(), key, downloadName(file), downloadURLExpiry)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating download url")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"url": url})
}

type updateFileRequest struct {
	Name     *string `json:"name"`
	ParentID *string `json:"parentID"`
}

func (h *FilesHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	var req updateFileRequest
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
		if err := h.Files.Rename(fileID, currentUser.ID, name); err != nil {
			return serviceError(c, err, "failed renaming file")
		}
	}

	if req.ParentID != nil {
		folderID, parseErr := parseOptionalUUID(*req.ParentID)
		if parseErr != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid parentID")
		}
		if err := h.Files.Move(fileID, currentUser.ID, folderID); err != nil {
			return serviceError(c, err, "failed moving file")
		}
	}

	updated, err := h.Files.Get(fileID, currentUser.ID)
	if err != nil {
		return serviceError(c, err, "failed loading updated file")
	}
	return utils.Success(c, fiber.StatusOK, updated)
}

func (h *FilesHandler) ToggleFavorite(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	if err := h.Files.ToggleFavorite(fileID, currentUser.ID); err != nil {
		return serviceError(c, err, "failed updating favorite status")
	}

	updated, err := h.Files.Get(fileID, currentUser.ID)
	if err != nil {
		return serviceError(c, err, "failed loading updated file")
	}
	return utils.Success(c, fiber.StatusOK, updated)
}

// Delete removes the blob first and aborts if that fails, so a live registry
// row never points at a missing blob.
func (h *FilesHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	file, err := h.Files.Get(fileID, currentUser.ID)
	if err != nil {
		return serviceError(c, err, "failed loading file")
	}

	key := storage.ObjectKey(file.BlobID, file.MimeType)
	if err := h.Storage.Delete(c.Context(), key); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting file content")
	}

	if err := h.Files.Delete(fileID, currentUser.ID); err != nil {
		return serviceError(c, err, "failed deleting file")
	}

	logger.InfoWithUser(currentUser.ID.String(), "file_deleted", map[string]interface{}{
		"file_id":   fileID.String(),
		"file_name": file.Name,
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "file deleted"})
}

func downloadName(file *models.File) string {
	if file.Format == "" {
		return file.Name
	}
	return file.Name + "." + file.Format
}
