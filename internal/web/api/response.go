package api

import (
	"github.com/gofiber/fiber/v2"
)

func ErrorResponse(c *fiber.Ctx, code int, status string, message string) error {
	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": message,
			"status":  status,
		},
	})
}

func ListResponse(c *fiber.Ctx, items any) error {
	return c.JSON(fiber.Map{
		"items": items,
	})
}
