package handlers

import (
	"strings"

	"github.com/filevault/backend/internal/middleware"
	"github.com/filevault/backend/internal/models"
	"github.com/filevault/backend/internal/services"
	"github.com/filevault/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

// DriveHandler serves the read-side views: home, folder contents, favorites,
// search and recents, all on the unified Item projection.
type DriveHandler struct {
	Items   *services.ItemService
	Files   *services.FileService
	Folders *services.FolderService
}

func NewDriveHandler(items *services.ItemService, files *services.FileService, folders *services.FolderService) *DriveHandler {
	return &DriveHandler{Items: items, Files: files, Folders: folders}
}

// resolveSort prefers an explicit ?sort= query over the user's stored
// preference; both funnel through the same whitelist.
func resolveSort(c *fiber.Ctx, user *models.User) services.SortSpec {
	if raw := strings.TrimSpace(c.Query("sort")); raw != "" {
		return services.ParseSort(raw)
	}
	return services.ParseSort(user.SortPreference)
}

func (h *DriveHandler) Home(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	items, err := h.Items.ByParent(currentUser.ID, nil, resolveSort(c, currentUser))
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing home contents")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"items": items})
}

// Folder returns the folder record, its breadcrumb chain and its direct
// contents in one response.
func (h *DriveHandler) Folder(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	folderID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid folder id")
	}

	folder, err := h.Folders.Get(folderID, currentUser.ID)
	if err != nil {
		return serviceError(c, err, "failed loading folder")
	}

	breadcrumbs, err := h.Folders.Breadcrumbs(folderID, currentUser.ID)
	if err != nil {
		return serviceError(c, err, "failed building breadcrumbs")
	}

	items, err := h.Items.ByParent(currentUser.ID, &folderID, resolveSort(c, currentUser))
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing folder contents")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"folder":      folder,
		"breadcrumbs": breadcrumbs,
		"items":       items,
	})
}

func (h *DriveHandler) Favorites(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	items, err := h.Items.Favorites(currentUser.ID, resolveSort(c, currentUser))
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing favorites")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"items": items})
}

func (h *DriveHandler) Search(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	term := strings.TrimSpace(c.Query("q"))
	if term == "" {
		return utils.Error(c, fiber.StatusBadRequest, "search query is required")
	}

	items, err := h.Items.Search(currentUser.ID, term, resolveSort(c, currentUser))
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "search failed")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"items": items})
}

func (h *DriveHandler) Recent(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	files, err := h.Files.Recent(currentUser.ID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing recent files")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"items": files})
}
