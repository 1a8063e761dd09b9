package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/chuka-black-market/marketplace/service"
)

const internalErrorMessage = "Internal server error"

// ErrorHandler renders every error that reaches Fiber as {"error": ...}.
// Anything that is not a *fiber.Error is logged and hidden from the caller.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := internalErrorMessage

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	} else {
		log.Printf("%s %s failed: %v", c.Method(), c.Path(), err)
	}
	return c.Status(code).JSON(fiber.Map{"error": message})
}

// serviceError maps listing service errors onto HTTP errors.
func serviceError(err error) error {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return fiber.NewError(fiber.StatusBadRequest, verr.Message)
	case errors.Is(err, service.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Product not found")
	}
	return err
}
