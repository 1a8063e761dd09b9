package handlers

import (
	"context"
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/chuka-black-market/marketplace/storage"
)

// ImageSource opens stored images by id.
type ImageSource interface {
	Open(ctx context.Context, id string) (io.ReadCloser, string, error)
}

// HandleImage streams GET /api/images/:id from an image source.
func HandleImage(images ImageSource) fiber.Handler {
	return func(c *fiber.Ctx) error {
		r, contentType, err := images.Open(c.UserContext(), c.Params("id"))
		if errors.Is(err, storage.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "Image not found")
		}
		if err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, contentType)
		c.Set(fiber.HeaderCacheControl, "public, max-age=86400")
		return c.SendStream(r)
	}
}
