package handlers

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/filevault/backend/internal/services"
	"github.com/filevault/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const maxNameLength = 50

var usernamePattern = regexp.MustCompile(`^[0-9A-Za-z]{6,16}$`)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

// parseOptionalUUID treats an empty value as "root level" (nil).
func parseOptionalUUID(value string) (*uuid.UUID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := uuid.Parse(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// validateItemName enforces the shared file/folder naming rule. Returns the
// trimmed name and an empty message on success.
func validateItemName(raw string) (string, string) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", "name is required"
	}
	if len(name) > maxNameLength {
		return "", fmt.Sprintf("name cannot exceed %d characters", maxNameLength)
	}
	return name, ""
}

func validateUsername(raw string) (string, string) {
	username := strings.TrimSpace(raw)
	if !usernamePattern.MatchString(username) {
		return "", "username must be between 6 and 16 characters and only contain letters and numbers"
	}
	return username, ""
}

// validatePassword checks the 8-32 char upper/lower/digit/special rule by
// hand; RE2 has no lookaheads.
func validatePassword(password string) string {
	const message = "password must be between 8 and 32 characters, have one uppercase letter, one lowercase letter, one digit and one special character"

	if len(password) < 8 || len(password) > 32 {
		return message
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune("#?!@$%^&*-", r):
			hasSpecial = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit || !hasSpecial {
		return message
	}
	return ""
}

// serviceError maps the service error taxonomy onto envelope responses;
// anything unrecognized becomes a generic internal error.
func serviceError(c *fiber.Ctx, err error, fallback string) error {
	var quotaErr *services.QuotaExceededError

	switch {
	case errors.Is(err, services.ErrNotFound):
		return utils.Error(c, fiber.StatusNotFound, "not found")
	case errors.Is(err, services.ErrUsernameTaken):
		return utils.Error(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		return utils.Error(c, fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrFolderCycle):
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	case errors.As(err, &quotaErr):
		return utils.Error(c, fiber.StatusRequestEntityTooLarge, quotaErr.Error())
	default:
		return utils.Error(c, fiber.StatusInternalServerError, fallback)
	}
}
