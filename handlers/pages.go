package handlers

import (
	"errors"
	"fmt"
	"html/template"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/chuka-black-market/marketplace/catalog"
	"github.com/chuka-black-market/marketplace/models"
	"github.com/chuka-black-market/marketplace/service"
)

// RedirectDelay is how long the sell page shows its success notice before
// returning to the listing browser.
const RedirectDelay = 2 * time.Second

// TemplateFuncs are the helpers the page templates use.
var TemplateFuncs = template.FuncMap{
	"contactLink": catalog.ContactLink,
	"label": func(s string) string {
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	},
	"price": func(p float64) string {
		return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", p), "0"), ".")
	},
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("2 Jan 2006")
	},
}

// PageHandler renders the browser client.
type PageHandler struct {
	Service *service.ListingService
}

func (h *PageHandler) RegisterRoutes(app fiber.Router, auth fiber.Handler) {
	app.Get("/", h.Browse)
	app.Get("/sell", h.SellForm)
	app.Post("/sell", auth, h.Sell)
	app.Get("/chat", h.static("chat", "Chat"))
	app.Get("/login", h.authPage("login", "Login", "Login successful!", "Login failed."))
	app.Get("/register", h.authPage("register", "Register", "Registration successful!", "Registration failed."))
}

// browseCard is one listing on the browse page. Hidden cards do not match
// the filter in the query string; the page script shows and hides cards as
// the filter is edited.
type browseCard struct {
	models.Listing
	Hidden bool
}

// Browse renders every product once. The search and category query
// parameters pick which cards start out visible, so the page also filters
// without scripts.
func (h *PageHandler) Browse(c *fiber.Ctx) error {
	search := c.Query("search")
	category := c.Query("category", catalog.AllCategories)

	data := fiber.Map{
		"Title":      "Browse",
		"Search":     search,
		"Category":   category,
		"Categories": catalog.FilterOptions(),
	}

	list, err := h.Service.List(c.UserContext())
	if err != nil {
		log.Printf("Failed to load listings: %v", err)
		data["Error"] = "Could not load products. Please try again later."
		return c.Status(fiber.StatusInternalServerError).Render("index", data)
	}

	shown := make(map[int64]bool, len(list))
	for _, l := range catalog.Filter(list, search, category) {
		shown[l.ID] = true
	}
	cards := make([]browseCard, len(list))
	for i, l := range list {
		cards[i] = browseCard{Listing: l, Hidden: !shown[l.ID]}
	}
	data["Products"] = cards
	data["Visible"] = len(shown)
	return c.Render("index", data)
}

// sellForm mirrors the form fields so a failed submission can be shown again.
type sellForm struct {
	Title       string
	Description string
	Price       string
	Category    string
	Location    string
	PhoneNumber string
}

func (h *PageHandler) SellForm(c *fiber.Ctx) error {
	return c.Render("sell", sellData(sellForm{Category: models.CategoryElectronics}))
}

// Sell creates a listing from the submitted form.
func (h *PageHandler) Sell(c *fiber.Ctx) error {
	in, done, err := readListingInput(c)
	if err != nil {
		return err
	}
	defer done()

	form := sellForm{
		Title:       in.Title,
		Description: in.Description,
		Price:       in.Price,
		Category:    in.Category,
		Location:    in.Location,
		PhoneNumber: in.PhoneNumber,
	}

	if _, err := h.Service.Create(c.UserContext(), in); err != nil {
		data := sellData(form)
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			data["Error"] = verr.Message
			return c.Status(fiber.StatusBadRequest).Render("sell", data)
		}
		log.Printf("Failed to create listing from form: %v", err)
		data["Error"] = "Failed to create listing"
		return c.Status(fiber.StatusInternalServerError).Render("sell", data)
	}

	data := sellData(sellForm{Category: models.CategoryElectronics})
	data["Success"] = "Your item has been listed successfully!"
	data["Redirect"] = "/"
	data["RedirectAfter"] = int(RedirectDelay / time.Second)
	return c.Status(fiber.StatusCreated).Render("sell", data)
}

func sellData(form sellForm) fiber.Map {
	return fiber.Map{
		"Title":      "Sell Item",
		"Form":       form,
		"Categories": models.Categories,
	}
}

func (h *PageHandler) static(name, title string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Render(name, fiber.Map{"Title": title})
	}
}

func (h *PageHandler) authPage(name, title, success, failure string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Render(name, fiber.Map{
			"Title":       title,
			"SuccessText": success,
			"FailureText": failure,
		})
	}
}
