package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/recgetup/internal/service"
)

// AdminHandler exposes package and class management to admins
type AdminHandler struct {
	catalog *service.CatalogService
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(catalog *service.CatalogService) *AdminHandler {
	return &AdminHandler{catalog: catalog}
}

// CreatePackage handles POST /v1/admin/packages
func (h *AdminHandler) CreatePackage(c *fiber.Ctx) error {
	var req service.PackageInput
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}

	pkg, err := h.catalog.CreatePackage(c.UserContext(), req)
	if err != nil {
		return serviceError(c, "Admin", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    pkg,
	})
}

// UpdatePackage handles PUT /v1/admin/packages/:id
func (h *AdminHandler) UpdatePackage(c *fiber.Ctx) error {
	var req service.PackageInput
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}

	pkg, err := h.catalog.UpdatePackage(c.UserContext(), c.Params("id"), req)
	if err != nil {
		return serviceError(c, "Admin", err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    pkg,
	})
}

// CreateClass handles POST /v1/admin/classes
func (h *AdminHandler) CreateClass(c *fiber.Ctx) error {
	var req service.ClassInput
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}

	class, err := h.catalog.CreateClass(c.UserContext(), req)
	if err != nil {
		return serviceError(c, "Admin", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    class,
	})
}

// UpdateClass handles PUT /v1/admin/classes/:id
func (h *AdminHandler) UpdateClass(c *fiber.Ctx) error {
	var req service.ClassInput
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}

	class, err := h.catalog.UpdateClass(c.UserContext(), c.Params("id"), req)
	if err != nil {
		return serviceError(c, "Admin", err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    class,
	})
}
