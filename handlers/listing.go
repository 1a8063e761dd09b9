package handlers

import (
	"errors"
	"mime/multipart"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/chuka-black-market/marketplace/service"
)

// ListingHandler serves the /api/products routes.
type ListingHandler struct {
	Service *service.ListingService
}

// RegisterRoutes mounts the listing routes. auth guards the mutating ones.
func (h *ListingHandler) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	r.Get("/products", h.List)
	r.Get("/products/:id", h.Get)
	r.Post("/products", auth, h.Create)
	r.Put("/products/:id", auth, h.Update)
	r.Delete("/products/:id", auth, h.Delete)
}

// GET /api/products
func (h *ListingHandler) List(c *fiber.Ctx) error {
	list, err := h.Service.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(list)
}

// GET /api/products/:id
func (h *ListingHandler) Get(c *fiber.Ctx) error {
	id, err := listingID(c)
	if err != nil {
		return err
	}
	l, err := h.Service.Get(c.UserContext(), id)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(l)
}

// POST /api/products (multipart)
func (h *ListingHandler) Create(c *fiber.Ctx) error {
	in, done, err := readListingInput(c)
	if err != nil {
		return err
	}
	defer done()

	l, err := h.Service.Create(c.UserContext(), in)
	if err != nil {
		return serviceError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(l)
}

// PUT /api/products/:id (multipart)
func (h *ListingHandler) Update(c *fiber.Ctx) error {
	id, err := listingID(c)
	if err != nil {
		return err
	}
	in, done, err := readListingInput(c)
	if err != nil {
		return err
	}
	defer done()

	l, err := h.Service.Update(c.UserContext(), id, in)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(fiber.Map{"message": "Product updated successfully", "product": l})
}

// DELETE /api/products/:id
func (h *ListingHandler) Delete(c *fiber.Ctx) error {
	id, err := listingID(c)
	if err != nil {
		return err
	}
	if err := h.Service.Delete(c.UserContext(), id); err != nil {
		return serviceError(err)
	}
	return c.JSON(fiber.Map{"message": "Product deleted successfully"})
}

// listingID parses :id. Ids that cannot exist are reported as not found.
func listingID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusNotFound, "Product not found")
	}
	return id, nil
}

// readListingInput collects the listing fields and the optional image from
// a multipart or urlencoded form. done releases the opened image file.
func readListingInput(c *fiber.Ctx) (service.ListingInput, func(), error) {
	in := service.ListingInput{
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		Price:       c.FormValue("price"),
		Category:    c.FormValue("category"),
		Location:    c.FormValue("location"),
		PhoneNumber: c.FormValue("phone_number"),
	}
	done := func() {}

	fh, err := c.FormFile("image")
	switch {
	case err == nil:
	case errors.Is(err, fasthttp.ErrMissingFile), errors.Is(err, fasthttp.ErrNoMultipartForm):
		return in, done, nil
	default:
		return in, done, fiber.NewError(fiber.StatusBadRequest, "invalid multipart form")
	}

	img, file, err := openImage(fh)
	if err != nil {
		return in, done, err
	}
	in.Image = img
	return in, func() { file.Close() }, nil
}

func openImage(fh *multipart.FileHeader) (*service.ImageUpload, multipart.File, error) {
	file, err := fh.Open()
	if err != nil {
		return nil, nil, fiber.NewError(fiber.StatusBadRequest, "cannot open image")
	}
	return &service.ImageUpload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Body:        file,
	}, file, nil
}
