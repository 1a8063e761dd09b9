package handlers

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Pinger reports whether the listing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthResponse struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// HandleTest answers GET /api/test once the listing store responds.
func HandleTest(store Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := store.Ping(c.UserContext()); err != nil {
			log.Printf("Store ping failed: %v", err)
			return fiber.NewError(fiber.StatusInternalServerError, "Database connection failed")
		}
		return c.JSON(HealthResponse{
			Message:   "Backend is connected",
			Timestamp: time.Now().UTC(),
		})
	}
}
