package contact

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	service *Service
	social  SocialLinks
}

func NewHandler(service *Service, social SocialLinks) *Handler {
	return &Handler{service: service, social: social}
}

// Submit handles POST /api/v1/contact
func (h *Handler) Submit(c *fiber.Ctx) error {
	var req Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.service.Submit(c.UserContext(), req); err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, ErrMissingFields) || errors.Is(err, ErrInvalidEmail) || errors.Is(err, ErrMessageTooLong) {
			status = fiber.StatusBadRequest
		}
		return c.Status(status).JSON(fiber.Map{
			"error": userMessage(err),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
	})
}

// Social handles GET /api/v1/social
func (h *Handler) Social(c *fiber.Ctx) error {
	return c.JSON(h.social)
}
