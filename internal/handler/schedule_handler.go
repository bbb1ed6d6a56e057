package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/recgetup/internal/domain"
	"github.com/mansoorceksport/recgetup/internal/service"
)

// ScheduleHandler serves the class schedule and the join gate
type ScheduleHandler struct {
	schedule *service.ScheduleService
}

// NewScheduleHandler creates a new ScheduleHandler
func NewScheduleHandler(schedule *service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{schedule: schedule}
}

// Schedule handles GET /v1/schedule
func (h *ScheduleHandler) Schedule(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	classes, err := h.schedule.VisibleClasses(c.UserContext(), userID)
	if err != nil {
		return serviceError(c, "Schedule", err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    classes,
	})
}

// Dashboard handles GET /v1/me/dashboard
func (h *ScheduleHandler) Dashboard(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	d, err := h.schedule.Dashboard(c.UserContext(), userID)
	if err != nil {
		return serviceError(c, "Schedule", err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    d,
	})
}

// Join handles GET /v1/classes/:id/join.
// Redirects to the meeting when the class is open; otherwise reports when it opens.
func (h *ScheduleHandler) Join(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	decision, err := h.schedule.JoinClass(c.UserContext(), userID, c.Params("id"))
	switch {
	case err == nil:
		return c.Redirect(decision.MeetingLink, fiber.StatusFound)
	case errors.Is(err, domain.ErrClassLocked):
		return c.JSON(fiber.Map{
			"success":  false,
			"locked":   true,
			"opens_at": decision.OpensAt,
			"error":    err.Error(),
		})
	default:
		return serviceError(c, "Schedule", err)
	}
}
