package handler

import (
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/recgetup/internal/service"
)

// ProfileHandler handles the signed-in user's profile
type ProfileHandler struct {
	profiles        *service.ProfileService
	maxUploadSizeMB int64
}

// NewProfileHandler creates a new ProfileHandler
func NewProfileHandler(profiles *service.ProfileService, maxUploadSizeMB int64) *ProfileHandler {
	return &ProfileHandler{
		profiles:        profiles,
		maxUploadSizeMB: maxUploadSizeMB,
	}
}

// Get handles GET /v1/me/profile
func (h *ProfileHandler) Get(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	user, err := h.profiles.Get(c.UserContext(), userID)
	if err != nil {
		return serviceError(c, "Profile", err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    user,
	})
}

// Update handles PUT /v1/me/profile
func (h *ProfileHandler) Update(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	var req service.ProfileInput
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.profiles.Update(c.UserContext(), userID, req)
	if err != nil {
		return serviceError(c, "Profile", err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Profile updated successfully",
		"data":    user,
	})
}

// UploadAvatar handles POST /v1/me/profile/avatar (multipart field "image")
func (h *ProfileHandler) UploadAvatar(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid multipart form")
	}

	files := form.File["image"]
	if len(files) == 0 {
		return errorJSON(c, fiber.StatusBadRequest, "no image file provided")
	}
	file := files[0]

	maxSize := h.maxUploadSizeMB * 1024 * 1024
	if file.Size > maxSize {
		return errorJSON(c, fiber.StatusBadRequest, "file size exceeds maximum allowed size")
	}

	f, err := file.Open()
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "failed to open uploaded file")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "failed to read uploaded file")
	}

	user, err := h.profiles.UploadAvatar(c.UserContext(), userID, data, file.Header.Get("Content-Type"))
	if err != nil {
		return serviceError(c, "Profile", err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    user,
	})
}
