package handlers

import (
	"mime/multipart"
	"strings"
	"time"

	"github.com/filevault/backend/internal/middleware"
	"github.com/filevault/backend/internal/services"
	"github.com/filevault/backend/internal/storage"
	"github.com/filevault/backend/pkg/logger"
	"github.com/filevault/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type AuthHandler struct {
	Users   *services.UserService
	Storage storage.BlobStore
}

func NewAuthHandler(users *services.UserService, blobStore storage.BlobStore) *AuthHandler {
	return &AuthHandler{Users: users, Storage: blobStore}
}

type registerRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	firstName, msg := validateItemName(req.FirstName)
	if msg != "" {
		return utils.Error(c, fiber.StatusBadRequest, "you must enter a first name")
	}
	lastName, msg := validateItemName(req.LastName)
	if msg != "" {
		return utils.Error(c, fiber.StatusBadRequest, "you must enter a last name")
	}
	username, msg := validateUsername(req.Username)
	if msg != "" {
		return utils.Error(c, fiber.StatusBadRequest, msg)
	}
	if msg := validatePassword(req.Password); msg != "" {
		return utils.Error(c, fiber.StatusBadRequest, msg)
	}

	user, err := h.Users.Create(firstName, lastName, username, req.Password)
	if err != nil {
		return serviceError(c, err, "failed creating account")
	}

	token, err := utils.GenerateToken(user)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating token")
	}

	logger.InfoWithUser(user.ID.String(), "user_registered", map[string]interface{}{
		"username": user.Username,
	})

	return utils.Success(c, fiber.StatusCreated, fiber.Map{
		"token": token,
		"user":  user,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.Users.Authenticate(strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		return serviceError(c, err, "login failed")
	}

	token, err := utils.GenerateToken(user)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating token")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"token": token,
		"user":  user,
	})
}

// Logout acknowledges so clients discard the bearer token; there is no
// server-side session to tear down.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "logged out"})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	return utils.Success(c, fiber.StatusOK, currentUser)
}

// UpdateMe takes a multipart form: firstName, lastName and an optional
// "picture" image. The picture blob is keyed by user id and overwritten on
// every change, with a fresh version recorded.
func (h *AuthHandler) UpdateMe(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	firstName, msg := validateItemName(c.FormValue("firstName"))
	if msg != "" {
		return utils.Error(c, fiber.StatusBadRequest, "you must enter a first name")
	}
	lastName, msg := validateItemName(c.FormValue("lastName"))
	if msg != "" {
		return utils.Error(c, fiber.StatusBadRequest, "you must enter a last name")
	}

	patch := services.ProfilePatch{FirstName: firstName, LastName: lastName}

	fileHeader, err := c.FormFile("picture")
	if err == nil && fileHeader != nil {
		pictureID, version, uploadErr := h.uploadPicture(c, currentUser.ID, fileHeader)
		if uploadErr != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "image upload failed")
		}
		patch.PictureID = &pictureID
		patch.PictureVersion = &version
	}

	if err := h.Users.UpdateProfile(currentUser.ID, patch); err != nil {
		return serviceError(c, err, "failed updating profile")
	}

	updated, err := h.Users.Get(currentUser.ID)
	if err != nil {
		return serviceError(c, err, "failed loading profile")
	}
	return utils.Success(c, fiber.StatusOK, updated)
}

func (h *AuthHandler) uploadPicture(c *fiber.Ctx, userID uuid.UUID, fileHeader *multipart.FileHeader) (string, string, error) {
	stream, err := fileHeader.Open()
	if err != nil {
		return "", "", err
	}
	defer stream.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		contentType = "image/jpeg"
	}

	pictureID := "avatar-" + userID.String()
	key := storage.ObjectKey(pictureID, contentType)
	if err := h.Storage.Upload(c.Context(), key, stream, fileHeader.Size, contentType); err != nil {
		return "", "", err
	}

	version := time.Now().UTC().Format(time.RFC3339Nano)
	return pictureID, version, nil
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req changePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if !utils.CheckPassword(currentUser.PasswordHash, req.CurrentPassword) {
		return utils.Error(c, fiber.StatusUnauthorized, "current password is incorrect")
	}
	if msg := validatePassword(req.NewPassword); msg != "" {
		return utils.Error(c, fiber.StatusBadRequest, msg)
	}

	if err := h.Users.UpdatePassword(currentUser.ID, req.NewPassword); err != nil {
		return serviceError(c, err, "failed updating password")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "password updated"})
}

type sortPreferenceRequest struct {
	Sort string `json:"sort"`
}

func (h *AuthHandler) SetSortPreference(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req sortPreferenceRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	normalized, err := h.Users.SetSortPreference(currentUser.ID, req.Sort)
	if err != nil {
		return serviceError(c, err, "failed saving sort preference")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"sortPreference": normalized})
}

// DeleteAccount removes every blob the user owns, then the account and all
// its rows. Blob failures abort before any database mutation.
func (h *AuthHandler) DeleteAccount(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	files, err := h.Users.Files(currentUser.ID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting account")
	}

	keys := make([]string, 0, len(files)+1)
	for _, file := range files {
		keys = append(keys, storage.ObjectKey(file.BlobID, file.MimeType))
	}
	if currentUser.PictureID != nil {
		keys = append(keys, storage.ObjectKey(*currentUser.PictureID, "image/jpeg"))
	}

	if len(keys) > 0 {
		if err := h.Storage.BatchDelete(c.Context(), keys); err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed deleting stored files")
		}
	}

	if err := h.Users.Delete(currentUser.ID); err != nil {
		return serviceError(c, err, "failed deleting account")
	}

	logger.InfoWithUser(currentUser.ID.String(), "account_deleted", map[string]interface{}{
		"files_removed": len(files),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "account deleted"})
}
